package apperr

import (
	"errors"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ProviderTransient, "fetch failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap chain to reach cause")
	}
	if !Is(err, ProviderTransient) {
		t.Fatal("expected Is to match ProviderTransient")
	}
	if CodeOf(err) != ProviderTransient {
		t.Fatalf("expected CodeOf to return ProviderTransient, got %s", CodeOf(err))
	}
}

func TestCodeOfNonAppErr(t *testing.T) {
	if CodeOf(errors.New("plain")) != Internal {
		t.Fatal("expected CodeOf to default to Internal for non-*Error")
	}
}

func TestRetryable(t *testing.T) {
	cases := map[Code]bool{
		ProviderTransient:   true,
		ProviderRateLimited: true,
		StoreUnavailable:    true,
		ProviderPermanent:   false,
		NotFound:            false,
	}
	for code, want := range cases {
		if got := code.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", code, got, want)
		}
	}
}
