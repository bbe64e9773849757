package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"attestation-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func envOrDefault(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func mysqlDSNFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "Local")
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode()), nil
}

func resolveMySQLDSN() (string, error) {
	raw := strings.TrimSpace(os.Getenv("MYSQL_URL"))
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}

	if raw != "" {
		if strings.HasPrefix(raw, "mysql://") {
			return mysqlDSNFromURL(raw)
		}
		return raw, nil
	}

	user := envOrDefault("DB_USER", "root")
	pass := envOrDefault("DB_PASS", "")
	host := envOrDefault("DB_HOST", "127.0.0.1")
	port := envOrDefault("DB_PORT", "3306")
	dbName := envOrDefault("DB_NAME", "attestation_db")

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, pass, host, port, dbName,
	), nil
}

// SeedDatabase ensures a hotel, a default staff account and a starter policy
// template exist so the product is usable on first boot.
func SeedDatabase() {
	// ---------------- Hotel ----------------
	var hotelCount int64
	DB.Model(&models.Hotel{}).Count(&hotelCount)
	if hotelCount == 0 {
		hotel := models.Hotel{
			Name:  envOrDefault("HOTEL_NAME", "Default Hotel"),
			Email: envOrDefault("HOTEL_EMAIL", "frontdesk@hotel.local"),
		}
		if err := DB.Create(&hotel).Error; err != nil {
			log.Printf("warning: failed to create default hotel: %v", err)
		} else {
			log.Println("Default hotel seeded")
		}
	}

	var hotel models.Hotel
	if err := DB.Order("id").First(&hotel).Error; err != nil {
		log.Printf("warning: no hotel row available for seeding: %v", err)
		return
	}

	// ---------------- Staff ----------------
	var staffCount int64
	DB.Model(&models.Staff{}).Count(&staffCount)
	if staffCount == 0 {
		password := envOrDefault("STAFF_DEFAULT_PASSWORD", "admin123")
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("warning: failed to hash default staff password: %v", err)
		} else {
			staff := models.Staff{
				HotelID:  hotel.ID,
				FullName: "Front Desk",
				Username: envOrDefault("STAFF_DEFAULT_USERNAME", "frontdesk@hotel.local"),
				Password: string(hash),
			}
			if err := DB.Create(&staff).Error; err != nil {
				log.Printf("warning: failed to create default staff account: %v", err)
			} else {
				log.Println("Default staff account seeded")
			}
		}
	}

	// ---------------- Policies ----------------
	var policyCount int64
	DB.Model(&models.Policy{}).Count(&policyCount)
	if policyCount == 0 {
		now := time.Now()
		policy := models.Policy{
			Slug:  "checkin-general",
			Title: "General Check-in Consent",
			Body: "I confirm the guest and stay details shown are accurate and " +
				"consent to this hotel storing them for the duration of my stay.",
			EffectiveFrom: &now,
			Version:       "1.0",
		}
		if err := DB.Create(&policy).Error; err != nil {
			log.Printf("warning: failed to seed policy template: %v", err)
		} else {
			log.Println("Policy template seeded")
		}
	}
}

func ConnectDatabase() error {
	dsn, err := resolveMySQLDSN()
	if err != nil {
		return err
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		return err
	}

	DB = db

	if err := Migrate(DB); err != nil {
		return err
	}

	SeedDatabase()
	return nil
}

// Migrate applies the schema in parent->child order.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Hotel{},
		&models.Staff{},
		&models.Policy{},
		&models.Guest{},
		&models.Attestation{},
		&models.AttestationEvent{},
	)
}
