// Package health implements liveness and readiness probes.
//
// Liveness only reports that the process is running. Readiness is false
// until SetReady(true, "") is called, then runs every registered check
// concurrently with a per-check timeout; one failing check makes the
// process degraded and the probe answer 503.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("storage", backend.Ping)
//	router.Get("/health", checker.LivenessHandler())
//	router.Get("/ready", checker.ReadinessHandler())
//	checker.SetReady(true, "")
package health
