package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nurpe/marketplace-settlement/internal/http/middleware"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type RouterOptions struct {
	Environment       string
	AllowedOrigins    []string
	ProfileMiddleware gin.HandlerFunc
	RateLimit         gin.HandlerFunc
	Checks            map[string]CheckFunc
	Log               zerolog.Logger
}

func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	if opts.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(opts.Log))
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", readiness(opts.Checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rateLimit := opts.RateLimit
	if rateLimit == nil {
		rateLimit = func(c *gin.Context) { c.Next() }
	}
	handler.Register(router, opts.ProfileMiddleware, rateLimit)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.ProfileIDHeader, "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", "Retry-After", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func readiness(checks map[string]CheckFunc) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		deps := make(map[string]string, len(names))
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		c.JSON(status, gin.H{"status": overall, "dependencies": deps})
	}
}
