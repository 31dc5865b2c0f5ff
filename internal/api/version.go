package api

import (
	"net/http"
	"time"

	"fleetsolve/internal/buildinfo"
)

// VersionHandler handles GET /version: build metadata plus a redacted view
// of the effective configuration. Secrets never appear here, only whether
// they are set.
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":            s.Cfg.Addr,
			"solveBudgetMs":   s.Cfg.SolveBudgetMs,
			"solveRatePerSec": s.Cfg.SolveRatePerSec,
			"solveRateBurst":  s.Cfg.SolveRateBurst,
			"hasDatabaseUrl":  s.Cfg.DatabaseURL != "",
			"hasRedisUrl":     s.Cfg.RedisURL != "",
			"hasAuthToken":    s.Cfg.AuthToken != "",
		},
	})
}
