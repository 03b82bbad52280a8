package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rijanshrestha/eventnest/config"
	"github.com/rijanshrestha/eventnest/internal/bookings"
	"github.com/rijanshrestha/eventnest/internal/handlers"
	"github.com/rijanshrestha/eventnest/internal/middleware"
	"github.com/rijanshrestha/eventnest/internal/models"
	"github.com/rijanshrestha/eventnest/internal/payments"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gateways := map[string]payments.Gateway{
		models.GatewayEsewa:  payments.NewEsewaGateway(config.LoadEsewaConfig()),
		models.GatewayKhalti: payments.NewKhaltiGateway(config.LoadKhaltiConfig()),
	}

	eventRepo := bookings.NewEventRepository(db)
	bookingRepo := bookings.NewBookingRepository(db)
	userRepo := bookings.NewUserRepository(db)
	capacity := bookings.NewCapacityUpdater(eventRepo, logger)
	bookingSvc := bookings.NewBookingService(bookingRepo, eventRepo, userRepo, capacity, gateways, cfg.FrontendURL, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)

	r := gin.Default()

	setupRoutes(r, db, bookingHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

func setupRoutes(r *gin.Engine, db *gorm.DB, bookingHandler *handlers.BookingHandler) {
	r.Use(middleware.DatabaseMiddleware(db))

	public := r.Group("/v1")
	{
		public.POST("/register", handlers.Register)
		public.POST("/login", handlers.Login)

		eventPublic := public.Group("/events")
		{
			eventPublic.GET("", handlers.ListEvents)
			eventPublic.GET("/:id", handlers.GetEvent)
		}

		public.GET("/categories", handlers.ListCategories)

		// Gateway callbacks arrive without a JWT; the correlation token is
		// the only authentication they carry.
		bookingPublic := public.Group("/bookings")
		{
			bookingPublic.GET("/payment/success", bookingHandler.PaymentSuccess)
			bookingPublic.GET("/payment/failure", bookingHandler.PaymentFailure)
			bookingPublic.GET("/booking-details/:token", bookingHandler.Details)
		}
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		protected.POST("/bookings", bookingHandler.Create)
		protected.GET("/profile", handlers.GetProfile)

		protected.POST("/categories", middleware.RequireRole("admin"), handlers.CreateCategory)

		eventProtected := protected.Group("/events")
		eventProtected.Use(middleware.RequireRole("organizer", "admin"))
		{
			eventProtected.POST("", handlers.CreateEvent)
			eventProtected.PUT("/:id", handlers.UpdateEvent)
			eventProtected.DELETE("/:id", handlers.DeleteEvent)
		}
	}
}
