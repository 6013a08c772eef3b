// Package handlers contains reusable HTTP pieces of the API: health checks
// and middleware.
//
// # Health Checks
//
// The HealthChecker interface runs named checks in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(handlers.PingFunc(conn.CheckHealth)))
//	checker.AddCheck("cache", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("health check failed: %s", status.Message)
//	}
//
// # Middleware
//
// Middleware are plain func(http.Handler) http.Handler values and compose
// with Chain:
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(10<<20),
//	)
//
// RequireUser rejects requests without the uploader header and stores the
// user id in the request context, where UserIDFromContext finds it.
package handlers
