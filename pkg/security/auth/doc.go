/*
Package auth provides API key authentication for the configuration API.

Each configured key maps to a subject. The middleware reads the key from a
header (by default "Authorization: Bearer <key>"), validates it and stores the
subject in the request context, where the authorization layer and the logger
pick it up.

# Usage

	validator := auth.NewValidatorFromConfig(&cfg.Security.Authentication)
	mw := auth.NewAPIKeyMiddleware(validator, &cfg.Security.Authentication, logger, writeError)
	router.Use(mw.Handle)

	func handler(w http.ResponseWriter, r *http.Request) {
		subject := auth.Subject(r.Context())
	}

# Configuration Example

	security:
	  authentication:
	    enabled: true
	    header: Authorization
	    scheme: Bearer
	    keys:
	      - key: "hk-pos-terminal-7f3a..."
	        subject: "svc:pos"
	      - key: "hk-old"
	        subject: "svc:legacy"
	        disabled: true

Key values are never logged; rejected keys are logged in redacted form.
*/
package auth
