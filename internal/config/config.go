package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	LDAP         LDAPConfig         `yaml:"ldap"`
	Redis        RedisConfig        `yaml:"redis"`
	Search       SearchConfig       `yaml:"search"`
	Mail         MailConfig         `yaml:"mail"`
	App          AppConfig          `yaml:"app"`
	Organization OrganizationConfig `yaml:"organization"`
	Log          LogConfig          `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// Browser origins allowed to call the API with credentials; empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SearchConfig points at a Meilisearch-compatible full-text index.
type SearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
	Index   string `yaml:"index"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

type AppConfig struct {
	BaseURL              string `yaml:"base_url"` // used in password reset links
	UploadDir            string `yaml:"upload_dir"`
	MaxUploadMB          int    `yaml:"max_upload_mb"`
	ResetTokenTTLMinutes int    `yaml:"reset_token_ttl_minutes"`
}

type OrganizationConfig struct {
	JoinCodeTTLMinutes int `yaml:"join_code_ttl_minutes"`
	JoinCodeLength     int `yaml:"join_code_length"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "bugdesk.db",
		},
		JWT: JWTConfig{
			Secret:     "bugdesk-secret-key-change-in-production",
			ExpireHour: 24,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Search: SearchConfig{
			Enabled: false,
			Host:    "http://localhost:7700",
			Index:   "tickets",
		},
		Mail: MailConfig{
			Enabled: false,
			Port:    587,
		},
		App: AppConfig{
			BaseURL:              "http://localhost:5173",
			UploadDir:            "uploads",
			MaxUploadMB:          10,
			ResetTokenTTLMinutes: 60,
		},
		Organization: OrganizationConfig{
			JoinCodeTTLMinutes: 60,
			JoinCodeLength:     6,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, strings.TrimSuffix(o, "/"))
			}
		}
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if host := os.Getenv("SEARCH_HOST"); host != "" {
		c.Search.Enabled = true
		c.Search.Host = host
	}
	if key := os.Getenv("SEARCH_API_KEY"); key != "" {
		c.Search.APIKey = key
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.Mail.Enabled = true
		c.Mail.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Mail.Port = p
		}
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		c.Mail.Username = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		c.Mail.Password = password
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.Mail.From = from
	}
	if baseURL := os.Getenv("APP_BASE_URL"); baseURL != "" {
		c.App.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}
