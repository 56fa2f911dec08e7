package config

import (
	"fmt"
	"os"

	"github.com/Trescaul/afri-skill-showcase/internal/models"
	"github.com/Trescaul/afri-skill-showcase/internal/mpesa"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
	}, nil
}

// LoadMpesaConfig reads the Daraja credentials. Missing values are not
// an error here; the gateway client reports ErrNotConfigured on first
// use instead, so the rest of the API stays up without them.
func LoadMpesaConfig() mpesa.Config {
	return mpesa.Config{
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		ShortCode:      os.Getenv("MPESA_BUSINESS_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		BaseURL:        os.Getenv("MPESA_BASE_URL"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
	}
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

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs the schema migration and seeds the fixed category list.
// Split out from InitDatabase so tests can run it against sqlite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Category{}, &models.SkillCard{}, &models.Payment{}); err != nil {
		return err
	}

	seedCategories(db)

	return nil
}

func seedCategories(db *gorm.DB) {
	categories := []models.Category{
		{Name: "Carpentry"},
		{Name: "Tailoring"},
		{Name: "Plumbing"},
		{Name: "Catering"},
		{Name: "Electrical"},
		{Name: "Masonry"},
		{Name: "Hairdressing"},
		{Name: "Mechanics"},
		{Name: "Photography"},
		{Name: "Farming"},
	}

	for _, category := range categories {
		var existing models.Category
		result := db.Where("name = ?", category.Name).First(&existing)
		if result.Error != nil {
			db.Create(&category)
		}
	}
}
