package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Supabase  SupabaseConfig
	Resend    ResendConfig
	Scheduler SchedulerConfig
	Fetcher   FetcherConfig
	S3        S3Config
	LogLevel  string
	Sites     map[string]*SiteConfig
}

type ServerConfig struct {
	Addr       string
	CronSecret string
}

type DatabaseConfig struct {
	Driver string // postgres or sqlite
	URL    string
	Path   string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

type ResendConfig struct {
	APIKey string
	From   string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type FetcherConfig struct {
	ScrapeAPIKey string
	ProxyURL     string
	DelayMS      int
	ItemTimeout  time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MirrorImages    bool
}

// SiteConfig describes how to extract a price snapshot from one retailer.
type SiteConfig struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Handler     string    `yaml:"handler"` // http or browser
	Hosts       []string  `yaml:"hosts"`
	RateLimitMS int       `yaml:"rate_limit_ms"`
	Selectors   Selectors `yaml:"selectors"`
}

type Selectors struct {
	Price    string `yaml:"price"`
	Currency string `yaml:"currency"`
	Name     string `yaml:"name"`
	Image    string `yaml:"image"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:       getEnv("SERVER_ADDR", ":8080"),
			CronSecret: os.Getenv("CRON_SECRET"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
			URL:    os.Getenv("DATABASE_URL"),
			Path:   getEnv("DB_PATH", "pricewatch.db"),
		},
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		},
		Resend: ResendConfig{
			APIKey: os.Getenv("RESEND_API_KEY"),
			From:   getEnv("RESEND_FROM_EMAIL", "alerts@pricewatch.local"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("CHECK_CRON"),
		},
		Fetcher: FetcherConfig{
			ScrapeAPIKey: os.Getenv("SCRAPINGBEE_API_KEY"),
			ProxyURL:     os.Getenv("PROXY_URL"),
			DelayMS:      getEnvInt("FETCH_DELAY_MS", 500),
			ItemTimeout:  getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			MirrorImages:    os.Getenv("MIRROR_IMAGES") == "true",
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("CHECK_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := "config/sites"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return err
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
