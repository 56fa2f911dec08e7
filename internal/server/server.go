package server

import (
	"fmt"
	"os"

	"github.com/Trescaul/afri-skill-showcase/config"
	"github.com/Trescaul/afri-skill-showcase/internal/handlers"
	"github.com/Trescaul/afri-skill-showcase/internal/middleware"
	"github.com/Trescaul/afri-skill-showcase/internal/monitoring"
	"github.com/Trescaul/afri-skill-showcase/internal/mpesa"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
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

	gateway := mpesa.NewClient(config.LoadMpesaConfig())

	r := gin.Default()

	SetupRoutes(r, db, gateway)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

func SetupRoutes(r *gin.Engine, db *gorm.DB, gateway mpesa.Gateway) {
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.MpesaMiddleware(gateway))

	r.GET("/metrics", monitoring.MetricsHandler())

	public := r.Group("/v1")
	{
		paymentPublic := public.Group("/payments")
		{
			paymentPublic.POST("/mpesa/callback", handlers.MpesaCallback)
			paymentPublic.GET("/status", handlers.CheckPaymentStatus)
		}

		cardPublic := public.Group("/cards")
		{
			cardPublic.GET("", handlers.ListCards)
			cardPublic.GET("/:id", handlers.GetCard)
			cardPublic.POST("/verify", handlers.VerifyCard)
		}

		public.GET("/categories", handlers.ListCategories)
	}

	protected := r.Group("/v1")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/payments/mpesa", handlers.InitiatePayment)
		protected.GET("/cards/:id/qr", handlers.GenerateCardQR)
		protected.POST("/uploads/profile-image", handlers.UploadProfileImage)
	}
}
