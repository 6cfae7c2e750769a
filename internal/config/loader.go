package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the parking service.
type Config struct {
	HTTPPort       int
	SQLitePath     string
	SessionTTL     time.Duration
	Location       *time.Location
	QuoteTTL       time.Duration
	SweepInterval  time.Duration
	DeletionGrace  time.Duration
	LogLevel       slog.Level
	LogFormat      string
	EnvFileMissing bool
}

// AdminConfig holds the bootstrap administrator credentials.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// Load reads a .env file when present and parses the process environment.
//
// Optional values fall back to defaults. Every missing or invalid key is
// reported in one error.
func Load() (Config, error) {
	missingEnv, err := loadDotEnv()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:       8080,
		SQLitePath:     "parking.db",
		SessionTTL:     24 * time.Hour,
		Location:       time.Local,
		QuoteTTL:       10 * time.Minute,
		SweepInterval:  time.Hour,
		DeletionGrace:  15 * 24 * time.Hour,
		LogLevel:       slog.LevelInfo,
		LogFormat:      "json",
		EnvFileMissing: missingEnv,
	}

	invalid := make([]string, 0, 2)

	if portValue := env("PARKING_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "PARKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if path := env("PARKING_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	for key, target := range map[string]*time.Duration{
		"PARKING_SESSION_TTL":    &cfg.SessionTTL,
		"PARKING_QUOTE_TTL":      &cfg.QuoteTTL,
		"PARKING_SWEEP_INTERVAL": &cfg.SweepInterval,
		"PARKING_DELETION_GRACE": &cfg.DeletionGrace,
	} {
		value := env(key)
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			continue
		}
		*target = d
	}

	if zone := env("PARKING_TIMEZONE"); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "PARKING_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if level := env("PARKING_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, "PARKING_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(env("PARKING_LOG_FORMAT")); format != "" {
		if format != "json" && format != "text" {
			invalid = append(invalid, "PARKING_LOG_FORMAT")
		} else {
			cfg.LogFormat = format
		}
	}

	if len(invalid) > 0 {
		slices.Sort(invalid)
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// LoadAdmin reads the administrator bootstrap credentials.
func LoadAdmin() (AdminConfig, error) {
	if _, err := loadDotEnv(); err != nil {
		return AdminConfig{}, err
	}

	admin := AdminConfig{
		Name:     env("PARKING_ADMIN_NAME"),
		Email:    env("PARKING_ADMIN_EMAIL"),
		Password: os.Getenv("PARKING_ADMIN_PASSWORD"),
	}

	missing := make([]string, 0, 2)
	if admin.Email == "" {
		missing = append(missing, "PARKING_ADMIN_EMAIL")
	}
	if admin.Password == "" {
		missing = append(missing, "PARKING_ADMIN_PASSWORD")
	}
	if len(missing) > 0 {
		return AdminConfig{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	return admin, nil
}

// loadDotEnv loads .env without overriding variables already set. It reports
// whether the file was absent.
func loadDotEnv() (bool, error) {
	err := godotenv.Load()
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	}
	return false, fmt.Errorf("failed to read .env: %w", err)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
