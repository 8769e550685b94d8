package providers

import (
	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/config"
)

// defaultBaseURL resolves a provider name to its upstream endpoint. A real
// deployment can point these at self-hosted mirrors via environment
// variables layered on top in a future revision; for now they are fixed
// per vendor.
func defaultBaseURL(name string) string {
	switch name {
	case "tushare":
		return "https://api.tushare.pro"
	case "akshare":
		return "http://localhost:8800/api/public"
	case "baostock":
		return "http://localhost:8801/api"
	case "yfinance":
		return "http://localhost:8802/api"
	default:
		return ""
	}
}

// Build constructs one Adapter per enabled entry in cfg.Providers, keyed by
// provider name. Unknown provider names are skipped rather than failing
// the whole registry, since a deployment may list a provider it plans to
// enable later without shipping the adapter code for it yet.
func Build(cfg *config.Config, log zerolog.Logger) (map[string]Adapter, error) {
	out := make(map[string]Adapter, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		baseURL := defaultBaseURL(p.Name)
		cred, _ := cfg.Credential(p.CredentialsRef)

		adapter, err := newAdapter(p.Name, baseURL, cred, log)
		if err != nil {
			return nil, err
		}
		if adapter != nil {
			out[p.Name] = adapter
		}
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.ConfigInvalid, "no provider adapters could be constructed from configuration")
	}
	return out, nil
}

func newAdapter(name, baseURL, credential string, log zerolog.Logger) (Adapter, error) {
	switch name {
	case "tushare":
		return NewTushareAdapter(baseURL, credential, log), nil
	case "akshare":
		return NewAkshareAdapter(baseURL, log), nil
	case "baostock":
		return NewBaostockAdapter(baseURL, log), nil
	case "yfinance":
		return NewYFinanceAdapter(baseURL, log), nil
	default:
		log.Warn().Str("provider", name).Msg("no adapter implementation registered for provider, skipping")
		return nil, nil
	}
}

// closer lets callers release rate-limited client goroutines on shutdown
// without every adapter needing to satisfy io.Closer explicitly in Adapter.
type closer interface {
	Close()
}

// CloseAll releases every adapter's background worker goroutine.
func CloseAll(adapters map[string]Adapter) {
	for _, a := range adapters {
		if c, ok := a.(closer); ok {
			c.Close()
		}
	}
}
