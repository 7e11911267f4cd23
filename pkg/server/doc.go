/*
Package server exposes the configuration rule engine over HTTP.

# Routes

	POST /api/v1/config/evaluate        resolve one key
	POST /api/v1/config/evaluate/batch  resolve several keys of one tenant
	GET  /api/v1/config/rules           list active rules of a tenant
	GET  /health                        liveness
	GET  /ready                         readiness (rule store, caches)
	GET  /version                       build information
	GET  /metrics                       Prometheus metrics

The tenant (HERA organization_id) is read from the request body for POST
routes and from the organization_id query parameter for GET routes. The
X-Organization-Id header may be used instead; when both are present they must
agree.

# Errors

Every failure is a JSON body of the form

	{"error": {"code": "invalid_argument", "message": "invalid argument config_key: must not be empty"}}

with status 400 for invalid arguments, 401 and 403 for authentication and
authorization failures, 429 with a Retry-After header when the tenant's rate
limit is exhausted, and 503 when the rule store is unavailable. A key
without any applicable rule is not an error: the response has a null value and
match_reason "no_match".

# Lifecycle

	srv, err := server.New(&cfg.Server, deps, logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx) // returns after ctx is cancelled and in-flight requests finish
*/
package server
