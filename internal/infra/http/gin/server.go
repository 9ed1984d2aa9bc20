package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/infra/config"
	"tripdesk/internal/infra/obs"
)

type BookingHTTP interface {
	Propose(c *gin.Context)
	Lookup(c *gin.Context)
}

type StaffHTTP interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Transition(c *gin.Context)
	Archive(c *gin.Context)
}

type MeHTTP interface {
	Bookings(c *gin.Context)
}

type EventsHTTP interface {
	Stream(c *gin.Context)
}

type Handlers struct {
	Booking        BookingHTTP
	Staff          StaffHTTP
	Me             MeHTTP
	Events         EventsHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Propose)
		api.GET("/bookings/lookup", h.Booking.Lookup)
	}
	if h.Me != nil {
		api.GET("/me/bookings", h.Me.Bookings)
	}
	staff := api.Group("/staff")
	if h.Staff != nil {
		staff.GET("/bookings", h.Staff.List)
		staff.GET("/bookings/:id", h.Staff.Get)
		staff.POST("/bookings/:id/transition", h.Staff.Transition)
		staff.POST("/bookings/:id/archive", h.Staff.Archive)
	}
	if h.Events != nil {
		staff.GET("/events", h.Events.Stream)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
