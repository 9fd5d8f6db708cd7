package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"doceria/internal/buildinfo"
)

// DebugJSON reports build info and non-secret configuration. Secrets show up
// only as presence flags.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                  os.Getenv("PORT"),
			"AUTH_MODE":             os.Getenv("AUTH_MODE"),
			"RATE_RPS":              os.Getenv("RATE_RPS"),
			"RATE_BURST":            os.Getenv("RATE_BURST"),
			"NOTIFY_MAX_ATTEMPTS":   os.Getenv("NOTIFY_MAX_ATTEMPTS"),
			"MP_BASE_URL":           os.Getenv("MP_BASE_URL"),
			"PUBLIC_BASE_URL":       os.Getenv("PUBLIC_BASE_URL"),
			"HAS_DATABASE_URL":      os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":         os.Getenv("REDIS_URL") != "",
			"HAS_MP_WEBHOOK_SECRET": os.Getenv("MP_WEBHOOK_SECRET") != "",
			"HAS_MP_ACCESS_TOKEN":   os.Getenv("MP_ACCESS_TOKEN") != "",
			"HAS_TELEGRAM":          os.Getenv("TELEGRAM_BOT_TOKEN") != "",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
