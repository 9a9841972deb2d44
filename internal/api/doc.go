// Package api hosts the loopback HTTP server the study view talks to.
// Notable routes:
//   - GET /healthz / readyz for probes; readyz turns green once hydrated.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/me for the session user and AI usage allowance.
//   - GET /v1/progress and /v1/progress/{identifier} for read projections.
//   - POST /v1/progress/toggle, /refresh and /flush, the only mutations.
//   - GET /v1/stats and /v1/notifications for dashboards and toasts.
package api
