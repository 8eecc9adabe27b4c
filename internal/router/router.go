package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/placementalarm/placement-api/config"
	"github.com/placementalarm/placement-api/internal/handler"
	"github.com/placementalarm/placement-api/internal/middleware"
)

// Handler is anything that can attach its routes to a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(cfg *config.Config, auth *middleware.AuthMiddleware) *Router {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidations()
	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		metrics: initRouterMetrics("placement_api"),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.CORS(cfg.Security),
		middleware.CacheControl(30*time.Second),
	)

	if cfg.RateLimit.Enabled {
		engine.Use(middleware.NewRateLimiter(cfg.RateLimit).RateLimit())
	}

	return r
}

// Setup mounts the given handlers: public ones under /api/v1 and
// protected ones behind JWT auth in the same group.
func (r *Router) Setup(public []Handler, protected []Handler) {
	api := r.engine.Group("/api/v1")

	for _, h := range public {
		h.RegisterRoutes(api)
	}

	authed := api.Group("")
	authed.Use(r.auth.Authenticate())
	for _, h := range protected {
		h.RegisterRoutes(authed)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
