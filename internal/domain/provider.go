// Package domain provides the core data model shared across every
// component of the ingestion and analysis pipeline.
package domain

// ProviderType classifies the capability class a Provider serves.
type ProviderType string

const (
	ProviderTypeCNEquity  ProviderType = "cn-equity"
	ProviderTypeHKEquity  ProviderType = "hk-equity"
	ProviderTypeUSEquity  ProviderType = "us-equity"
	ProviderTypeNews      ProviderType = "news"
	ProviderTypeFinancial ProviderType = "financial"
)

// Provider is a config-backed, process-wide description of one upstream
// market-data vendor. Credentials are opaque to the core; adapters resolve
// them against whatever secret store backs CredentialsRef.
type Provider struct {
	Name          string       `json:"name"`
	Type          ProviderType `json:"type"`
	CredentialsRef string      `json:"credentials_ref"`
	Enabled       bool         `json:"enabled"`
	Priority      int          `json:"priority"` // lower = higher priority
}
