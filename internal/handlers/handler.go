package handlers

import (
	"time"

	_ "thermal_envelope/docs"
	"thermal_envelope/internal/logger"
	"thermal_envelope/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services     *service.Service
	log          *logger.Logger
	pollInterval time.Duration
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log, pollInterval: defaultInterval}
}

// WithPollInterval sets the default websocket poll interval.
func (h *Handler) WithPollInterval(d time.Duration) *Handler {
	if d > 0 && d <= maxInterval {
		h.pollInterval = d
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Event stream over a websocket upgrade on the same port. Events carry
	// fit results, so the stream needs the same token as /api/v1.
	router.GET("/ws", h.userIdMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerFitRoutes(api)
		h.registerModelRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerFitRoutes(api *gin.RouterGroup) {
	fits := api.Group("/fits")
	{
		fits.POST("", h.createFit)
		fits.POST("/batch", h.createFitBatch)
		fits.GET("", h.listFits)
		fits.GET("/:id", h.getFit)
		fits.GET("/:id/series", h.getFitSeries)
	}
}

func (h *Handler) registerModelRoutes(api *gin.RouterGroup) {
	api.POST("/predict", h.predict)
	api.POST("/simulate", h.simulate)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
