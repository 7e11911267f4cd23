// Package logging configures structured logging on top of log/slog.
//
// # Overview
//
//   - JSON, text, and console output formats
//   - Request, tenant, and subject identifiers copied from the context
//   - Optional masking of API keys, bearer tokens, and DSN passwords
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactSecrets: true,
//	})
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithTenantID(ctx, "org-1")
//	logger.InfoContext(ctx, "configuration evaluated", "config_key", key)
//	// {"level":"INFO","msg":"configuration evaluated","config_key":"...","request_id":"req-123","organization_id":"org-1"}
package logging
