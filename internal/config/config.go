package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	// Reminder engine knobs.
	WarningDays int
	MaxAttempts int
	Concurrency int

	CorporateCron string
	CoverageCron  string

	CorporateStatuses []string
	CoverageStatuses  []string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		WarningDays: getenvInt("WARNING_DAYS", 10),
		MaxAttempts: getenvInt("MAX_ATTEMPTS", 5),
		Concurrency: getenvInt("CONCURRENCY", 3),

		// Corporate scans only matter on days 1-10; run daily anyway and let the
		// classifier gate the window.
		CorporateCron: getenv("CORPORATE_CRON", "0 6 * * *"),
		CoverageCron:  getenv("COVERAGE_CRON", "0 7 * * *"),

		CorporateStatuses: getenvList("CORPORATE_STATUSES", "PENDING,OVERDUE"),
		CoverageStatuses:  getenvList("COVERAGE_STATUSES", "PENDING,OVERDUE"),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvList(key, def string) []string {
	raw := getenv(key, def)
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(strings.ToUpper(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
