package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CronSecretHuma is a Huma middleware guarding the scan trigger with a static
// bearer secret. An empty secret lets every request through.
// On failure it writes {"error":"Unauthorized"} with status 401.
func CronSecretHuma(secret string, logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if secret == "" {
			next(ctx)
			return
		}

		token, found := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Warn("rejected cron request", "path", ctx.URL().Path, "remote", ctx.RemoteAddr())
			ctx.SetHeader("Content-Type", "application/json")
			ctx.SetStatus(http.StatusUnauthorized)
			_ = json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next(ctx)
	}
}
