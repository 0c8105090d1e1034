package llms

import "fmt"

// ProviderError reports a failed provider call with enough identity for
// the caller to decide on retries or fallback routing. StatusCode is zero
// when the failure happened below or above the HTTP layer.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s (model %s) failed with status %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s (model %s) failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
