// Package health provides liveness and readiness HTTP handlers.
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "store":    health.StoreCheck(store),
//	    "redis":    redis.Healthcheck(client),
//	    "postgres": db.Healthcheck(pool),
//	}, health.WithTimeout(3*time.Second), health.WithLogger(log)))
//
// Checks run in parallel under one timeout. Handlers answer plain text ("OK",
// "Service Unavailable") unless JSON is requested with ?format=json or an
// Accept: application/json header:
//
//	{"status":"unhealthy","checks":{"store":{"status":"healthy"},"redis":{"status":"unhealthy","error":"..."}}}
//
// [Run] executes the same checks outside HTTP, e.g. from the CLI.
package health
