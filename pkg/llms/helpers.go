package llms

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cogito-ai/cogito/pkg/config"
	"github.com/cogito-ai/cogito/pkg/httpclient"
)

// newRetryingClient builds the retrying HTTP client shared by the HTTP
// based providers. Request lifetime is governed by the caller's context,
// so the underlying client carries no timeout of its own. Streaming
// responses would otherwise be cut mid-body.
func newRetryingClient(cfg *config.ProviderConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{}),
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, httpclient.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.RetryDelay > 0 {
		opts = append(opts, httpclient.WithBaseDelay(cfg.RetryDelay))
	}
	if parser != nil {
		opts = append(opts, httpclient.WithHeaderParser(parser))
	}
	return httpclient.New(opts...)
}

// schemaSystemPrompt renders a JSON schema instruction block for providers
// without native structured output support.
func schemaSystemPrompt(structured *StructuredOutputConfig) string {
	if structured == nil || structured.Schema == nil {
		return ""
	}

	schemaJSON, err := json.MarshalIndent(structured.Schema, "", "  ")
	if err != nil {
		return ""
	}

	return fmt.Sprintf(`You must respond with valid JSON matching this exact schema:

%s

Important:
- Output ONLY valid JSON, no other text
- All required fields must be present
- Follow the exact structure specified
- Use correct data types for each field`, string(schemaJSON))
}

// joinSystemPrompts concatenates the request system prompt with a schema
// instruction block, dropping empty parts.
func joinSystemPrompts(base, schema string) string {
	switch {
	case base == "":
		return schema
	case schema == "":
		return base
	default:
		return base + "\n\n" + schema
	}
}
