// Package health provides liveness, readiness and version endpoints.
//
// # Endpoints
//
//   - /health: Liveness probe, answers while the process runs
//   - /ready: Readiness probe, runs every registered dependency check
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("store", store.Ping)
//	router.Get("/health", checker.LivenessHandler())
//	router.Get("/ready", checker.ReadinessHandler())
//
// Checks run concurrently, each bounded by the checker timeout. A failing
// check makes readiness return 503 with status "degraded".
package health
