package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tazhate/familyreminders/internal/storage"
)

type Config struct {
	TelegramToken     string
	OwnerTelegramID   int64
	PartnerTelegramID int64
	DatabaseDriver    string
	DatabasePath      string
	DatabaseURL       string
	Timezone          *time.Location
	LogLevel          string
	Environment       string
	EngineConfigPath  string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	Engine EngineConfig
}

// Load reads the environment (and a .env file if present), then the
// optional engine file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	ownerID, err := strconv.ParseInt(os.Getenv("OWNER_TELEGRAM_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("OWNER_TELEGRAM_ID is required and must be a number")
	}

	var partnerID int64
	if p := os.Getenv("PARTNER_TELEGRAM_ID"); p != "" {
		partnerID, _ = strconv.ParseInt(p, 10, 64)
	}

	driver := getenv("DATABASE_DRIVER", storage.DriverSQLite)
	dbURL := os.Getenv("DATABASE_URL")
	if driver == storage.DriverPostgres && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}

	tz, err := time.LoadLocation(getenv("TIMEZONE", "Europe/Moscow"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		TelegramToken:     token,
		OwnerTelegramID:   ownerID,
		PartnerTelegramID: partnerID,
		DatabaseDriver:    driver,
		DatabasePath:      getenv("DATABASE_PATH", "./data/familyreminders.db"),
		DatabaseURL:       dbURL,
		Timezone:          tz,
		LogLevel:          getenv("LOG_LEVEL", "info"),
		Environment:       getenv("ENVIRONMENT", "development"),
		EngineConfigPath:  os.Getenv("ENGINE_CONFIG"),
		CalDAVURL:         os.Getenv("CALDAV_URL"),
		CalDAVUsername:    os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:    os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:    os.Getenv("CALDAV_CALENDAR"),
		Engine:            DefaultEngineConfig(),
	}

	if spec := os.Getenv("REMATERIALIZE_SPEC"); spec != "" {
		cfg.Engine.Schedules.Rematerialize = spec
	}

	if cfg.EngineConfigPath != "" {
		engine, err := LoadEngine(cfg.EngineConfigPath)
		if err != nil {
			return nil, fmt.Errorf("engine config: %w", err)
		}
		cfg.Engine = engine
	}

	return cfg, nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DatabaseDriver == storage.DriverPostgres {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID || telegramID == c.PartnerTelegramID
}

// Recipients returns the chats that receive notifications.
func (c *Config) Recipients() []int64 {
	ids := []int64{c.OwnerTelegramID}
	if c.PartnerTelegramID != 0 {
		ids = append(ids, c.PartnerTelegramID)
	}
	return ids
}

func (c *Config) CalDAVEnabled() bool {
	return c.CalDAVUsername != "" && c.CalDAVPassword != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
