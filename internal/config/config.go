package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeServer Mode = "server"
	ModeWorker Mode = "worker"
)

// Config holds service configuration shared by the API server and the
// price-refresh worker.
type Config struct {
	DatabaseURL          string
	AuthServiceURL       string
	AuthServiceAPIKey    string
	QuoteProviderName    string
	QuoteProviderAPIKey  string
	QuoteProviderBaseURL string
	RefreshIntervalSec   int
	Port                 string
}

func LoadForServer() (Config, error) {
	return load(ModeServer)
}

func LoadForWorker() (Config, error) {
	return load(ModeWorker)
}

func load(mode Mode) (Config, error) {
	cfg := Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		AuthServiceURL:       os.Getenv("AUTH_SERVICE_URL"),
		AuthServiceAPIKey:    os.Getenv("AUTH_SERVICE_API_KEY"),
		QuoteProviderName:    os.Getenv("QUOTE_PROVIDER_NAME"),
		QuoteProviderAPIKey:  os.Getenv("QUOTE_PROVIDER_API_KEY"),
		QuoteProviderBaseURL: os.Getenv("QUOTE_PROVIDER_BASE_URL"),
		Port:                 envDefault("PORT", "8080"),
	}

	var validationErrs []string
	requireEnv("DATABASE_URL", cfg.DatabaseURL, &validationErrs)

	interval, err := envIntDefault("REFRESH_INTERVAL_SEC", 300)
	if err != nil {
		validationErrs = append(validationErrs, "REFRESH_INTERVAL_SEC must be a positive integer")
	}
	cfg.RefreshIntervalSec = interval

	switch mode {
	case ModeServer:
		requireEnv("AUTH_SERVICE_URL", cfg.AuthServiceURL, &validationErrs)
		requireEnv("AUTH_SERVICE_API_KEY", cfg.AuthServiceAPIKey, &validationErrs)
	case ModeWorker:
		requireEnv("QUOTE_PROVIDER_NAME", cfg.QuoteProviderName, &validationErrs)
		requireEnv("QUOTE_PROVIDER_API_KEY", cfg.QuoteProviderAPIKey, &validationErrs)
	default:
		validationErrs = append(validationErrs, "unknown service mode")
	}

	if len(validationErrs) > 0 {
		return cfg, errors.New(strings.Join(validationErrs, "; "))
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntDefault(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}

func requireEnv(name, value string, errs *[]string) {
	if strings.TrimSpace(value) == "" {
		*errs = append(*errs, name+" is required")
	}
}
