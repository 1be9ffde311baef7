package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// MiddlewareStack installs the Meridian middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		secureMiddleware.Handler,
	}

	if cfg.Config != nil {
		if cfg.Config.RateLimitRequests > 0 {
			stack = append(stack, httprate.LimitByIP(cfg.Config.RateLimitRequests, cfg.Config.RateLimitWindow))
		}
		if cfg.Config.AppRequestTimeout > 0 {
			stack = append(stack, middleware.Timeout(cfg.Config.AppRequestTimeout))
		}
	}

	return stack
}

// Identity propagates the authenticated user id, resolved upstream by the
// gateway, from the X-User-ID header into the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(shared.ContextWithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
