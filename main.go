package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/config"
	"github.com/washline/carwash-app/database"
	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/router"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()

	for _, envVar := range []string{
		"STRIPE_SECRET_KEY",
		"STRIPE_PUBLISHABLE_KEY",
		"STRIPE_WEBHOOK_SECRET",
	} {
		if os.Getenv(envVar) == "" {
			log.Printf("Warning: environment variable %s is not set, card payments disabled", envVar)
		}
	}
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	utils.InitDB(db)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	changeMonitor := services.NewChangeMonitor(db)
	changeMonitor.Interval = 500 * time.Millisecond
	changeMonitor.Start()
	defer changeMonitor.Stop()

	paymentMonitor := services.NewPaymentMonitor(db)
	paymentMonitor.Start()

	paymentService := services.NewPaymentService(db)
	paymentService.StartTimeoutChecker()

	r := router.SetupRouter(db, paymentMonitor)
	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Company{},
		&models.Cleaner{},
		&models.CleanerInvitation{},
		&models.Job{},
		&models.JobFinancials{},
		&models.ShiftSession{},
		&models.Transaction{},
		&models.CompanyWithdrawal{},
		&models.FeeSetting{},
		&models.Notification{},
		&models.PushSubscription{},
		&models.DBChange{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	if err := database.ExecuteTriggers(db); err != nil {
		utils.ErrorLogger.Printf("Error setting up triggers: %v", err)
	}

	seedFeeSettings(db)
}

// seedFeeSettings inserts the default fee formulas on first boot so new
// installs can price jobs immediately.
func seedFeeSettings(db *gorm.DB) {
	defaults := []models.FeeSetting{
		{PackageType: services.FeePackageCustom, Percent: 0, Flat: 2.50, Active: true},
		{PackageType: services.FeePackageOne, Percent: 10, Flat: 0.50, Active: true},
		{PackageType: services.FeePackageTwo, Percent: 0, Flat: 0, Active: true},
	}
	for _, setting := range defaults {
		var count int64
		db.Model(&models.FeeSetting{}).Where("package_type = ?", setting.PackageType).Count(&count)
		if count > 0 {
			continue
		}
		setting.CreatedAt = time.Now()
		setting.UpdatedAt = time.Now()
		if err := db.Create(&setting).Error; err != nil {
			utils.ErrorLogger.Printf("Error seeding fee setting %s: %v", setting.PackageType, err)
		}
	}
}
