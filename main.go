package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"barpos-backend/cache"
	"barpos-backend/config"
	"barpos-backend/middlewares"
	"barpos-backend/models"
	"barpos-backend/router"
	"barpos-backend/utils"
)

func main() {
	utils.InitLogger()

	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("No .env file found, using host environment")
	}

	cfg := config.Load()

	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	// View cache: redis when configured, in-process otherwise.
	var inv cache.Invalidator
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPass, 0)
		defer rc.Close()
		inv = rc
		utils.InfoLogger.Printf("Using redis view cache at %s", cfg.RedisAddr)
	} else {
		inv = cache.NewMemoryCache()
	}

	rateLimiter := middlewares.NewRateLimiter(50, 1)

	r := router.SetupRouter(db, inv, cfg.BaseURL)
	r.Use(rateLimiter.RateLimit())

	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Table{},
		&models.QRSession{},
		&models.Guest{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Invoice{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
