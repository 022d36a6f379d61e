package handlers

import (
	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/metrics"
	"battery_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options tunes the HTTP layer. Zero values disable the related feature.
type Options struct {
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // served on /metrics when set
	// CommandRPS and CommandBurst limit the state-changing routes.
	CommandRPS   float64
	CommandBurst int
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	opts     Options
	limiter  *rate.Limiter
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{services: services, log: log, opts: opts}
	if opts.CommandRPS > 0 {
		burst := opts.CommandBurst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.CommandRPS), burst)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	h.registerAPIRoutes(router)

	// state stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/dashboard", h.getDashboard)
		api.GET("/telemetry", h.getTelemetry)
		api.GET("/history", h.getHistory)
		api.GET("/polling", h.getPolling)
		h.registerRelayRoutes(api)
		h.registerModeRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerRelayRoutes(api *gin.RouterGroup) {
	relay := api.Group("/relay")
	{
		relay.GET("", h.getRelay)
		// Body example: {"state":"on"}
		relay.POST("/toggle", h.rateLimit, h.toggleRelay)
		// Body example: {"enabled":true,"threshold":25}
		relay.POST("/auto-shutoff", h.rateLimit, h.setAutoShutoff)
	}
}

func (h *Handler) registerModeRoutes(api *gin.RouterGroup) {
	mode := api.Group("/mode")
	{
		mode.GET("", h.getMode)
		mode.POST("", h.rateLimit, h.setMode)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
}
