// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// CompositeHealthChecker runs named checks in parallel. Critical checks
// decide readiness; optional ones only mark the service degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCritical("database", handlers.NewPingCheck(conn))
//	checker.AddOptional("redis", handlers.NewPingCheck(cache))
//	checker.AddOptional("smtp", handlers.NewCircuitCheck("smtp", mailer))
//
//	status := checker.Check(ctx)
//	if !status.Ready {
//	    log.Error("service not ready", logger.String("message", status.Message))
//	}
//
// # Authentication
//
// APIKeyAuth compares the presented key against bcrypt hashes, so plaintext
// keys never live in configuration:
//
//	auth, err := handlers.NewAPIKeyAuth("X-API-Key", cfg.APIKeyHashes)
//	router.Use(auth.Middleware)
package handlers
