package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the SUUMO chintai search for central Tokyo wards.
const DefaultBaseURL = "https://suumo.jp/jj/chintai/ichiran/FR301FC001/?ar=030&bs=040&ta=13" +
	"&sc=13101&sc=13102&sc=13103&sc=13104&sc=13105&sc=13113" +
	"&cb=0.0&ct=9999999&et=9999999&cn=9999999&mb=0&mt=9999999" +
	"&shkr1=03&shkr2=03&shkr3=03&shkr4=03&fw2="

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL          string
	MaxPages         int
	PageDelayMs      int
	MaxConcurrency   int
	MaxRetries       int
	RetryBaseDelayMs int
	StopAfterEmpty   int
	RequestTimeoutMs int
	UserAgent        string

	CSVEnabled    bool
	CSVOutputPath string

	DBEnabled bool
	DBDriver  string
	DBDSN     string
	TableName string
	// ReportFromTable builds insights from every stored row instead of the
	// current batch.
	ReportFromTable bool

	LogLevel string
	LogFile  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:          getEnv("BASE_URL", DefaultBaseURL),
		MaxPages:         getEnvInt("MAX_PAGES", 571),
		PageDelayMs:      getEnvInt("PAGE_DELAY_MS", 1000),
		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 1),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelayMs: getEnvInt("RETRY_BASE_DELAY_MS", 2000),
		StopAfterEmpty:   getEnvInt("STOP_AFTER_EMPTY_PAGES", 2),
		RequestTimeoutMs: getEnvInt("REQUEST_TIMEOUT_MS", 30000),
		UserAgent:        getEnv("USER_AGENT", "suumo-scraper/1.0"),

		CSVEnabled:    getEnvBool("CSV_ENABLED", true),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "suumo.csv"),

		DBEnabled: getEnvBool("DB_ENABLED", true),
		DBDriver:  getEnv("DB_DRIVER", "sqlite"),
		DBDSN:     getEnv("DB_DSN", "suumo.db"),
		TableName: getEnv("DB_TABLE", "property_data"),

		ReportFromTable: getEnvBool("REPORT_FROM_TABLE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// Validate reports the first setting that cannot drive a run.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: BASE_URL must not be empty")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("config: MAX_PAGES must be >= 1, got %d", c.MaxPages)
	}
	if c.PageDelayMs < 0 {
		return fmt.Errorf("config: PAGE_DELAY_MS must be >= 0, got %d", c.PageDelayMs)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config: MAX_CONCURRENCY must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: MAX_RETRIES must be >= 1, got %d", c.MaxRetries)
	}
	if c.StopAfterEmpty < 0 {
		return fmt.Errorf("config: STOP_AFTER_EMPTY_PAGES must be >= 0, got %d", c.StopAfterEmpty)
	}
	if c.DBEnabled {
		switch c.DBDriver {
		case "sqlite", "postgres", "mysql":
		default:
			return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
		}
		if !tableNameRegexp.MatchString(c.TableName) {
			return fmt.Errorf("config: invalid DB_TABLE %q", c.TableName)
		}
	}
	if c.ReportFromTable && !c.DBEnabled {
		return fmt.Errorf("config: REPORT_FROM_TABLE needs the table sink enabled")
	}
	if c.CSVEnabled && c.CSVOutputPath == "" {
		return fmt.Errorf("config: CSV_OUTPUT_PATH must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return fallback
}
