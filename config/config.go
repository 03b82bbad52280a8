package config

import (
	"fmt"
	"os"

	"github.com/rijanshrestha/eventnest/internal/models"
	"github.com/rijanshrestha/eventnest/internal/payments"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	FrontendURL string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      os.Getenv("DB_PORT"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		FrontendURL: os.Getenv("FRONTEND_URL"),
	}, nil
}

// Gateway credentials are read once here and handed to the adapters at
// construction. Business logic never touches the environment.
func LoadEsewaConfig() *payments.EsewaConfig {
	return &payments.EsewaConfig{
		MerchantCode:   os.Getenv("ESEWA_MERCHANT_ID"),
		SecretKey:      os.Getenv("ESEWA_SECRET_KEY"),
		PaymentURL:     os.Getenv("ESEWA_PAYMENT_URL"),
		StatusCheckURL: os.Getenv("ESEWA_STATUS_CHECK_URL"),
		SuccessURL:     os.Getenv("APP_URL") + "/v1/bookings/payment/success",
		FailureURL:     os.Getenv("APP_URL") + "/v1/bookings/payment/failure",
		SignatureMode:  os.Getenv("ESEWA_SIGNATURE_MODE"),
	}
}

func LoadKhaltiConfig() *payments.KhaltiConfig {
	return &payments.KhaltiConfig{
		SecretKey: os.Getenv("KHALTI_SECRET_KEY"),
		BaseURL:   os.Getenv("KHALTI_BASE_URL"),
		ReturnURL: os.Getenv("APP_URL") + "/v1/bookings/payment/success",
	}
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&models.Role{}, &models.User{}, &models.Category{}, &models.Event{}, &models.Attendance{}, &models.Booking{})
	if err != nil {
		return nil, err
	}

	seedRoles(db)

	return db, nil
}

func seedRoles(db *gorm.DB) {
	roles := []models.Role{
		{Name: "organizer"},
		{Name: "attendee"},
		{Name: "admin"},
	}

	for _, role := range roles {
		var existingRole models.Role
		result := db.Where("name = ?", role.Name).First(&existingRole)
		if result.Error != nil {
			db.Create(&role)
		}
	}
}
