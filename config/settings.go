package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings is the full runtime configuration of the pipeline and the status API.
type Settings struct {
	Environment string `yaml:"environment"`
	LogDir      string `yaml:"log_dir"`
	DebugSQL    bool   `yaml:"debug_sql"`

	API       APISettings       `yaml:"api"`
	Database  DatabaseSettings  `yaml:"database"`
	Pipeline  PipelineSettings  `yaml:"pipeline"`
	SMTP      SMTPSettings      `yaml:"smtp"`
	Server    ServerSettings    `yaml:"server"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
}

type APISettings struct {
	Key             string        `yaml:"key"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
}

type DatabaseSettings struct {
	Driver   string `yaml:"driver" validate:"oneof=mysql sqlite"`
	Host     string `yaml:"host" validate:"required_if=Driver mysql"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name" validate:"required"`
	User     string `yaml:"user" validate:"required_if=Driver mysql"`
	Password string `yaml:"password"`
}

type PipelineSettings struct {
	StartDate         string        `yaml:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string        `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
	MaxRetries        int           `yaml:"max_retries" validate:"gte=1,lte=10"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay" validate:"gt=0"`
	RateLimitDelay    time.Duration `yaml:"rate_limit_delay" validate:"gt=0"`
	PacingDelay       time.Duration `yaml:"pacing_delay" validate:"gte=0"`
	AutoMigrate       bool          `yaml:"auto_migrate"`
}

type SMTPSettings struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	User          string   `yaml:"user"`
	Pass          string   `yaml:"pass"`
	From          string   `yaml:"from"`
	SkipTLSVerify bool     `yaml:"skip_tls_verify"`
	NotifyEmails  []string `yaml:"notify_emails" validate:"dive,email"`
}

type ServerSettings struct {
	Port      string `yaml:"port"`
	GinMode   string `yaml:"gin_mode"`
	JWTSecret string `yaml:"jwt_secret"`
}

type TelemetrySettings struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
}

// DefaultSettings mirrors the values the pipeline has always run with.
func DefaultSettings() Settings {
	return Settings{
		Environment: "development",
		LogDir:      "logs",
		API: APISettings{
			Timeout:         30 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  time.Minute,
		},
		Database: DatabaseSettings{
			Driver: "mysql",
			Port:   "3306",
		},
		Pipeline: PipelineSettings{
			MaxRetries:        3,
			InitialRetryDelay: 5 * time.Second,
			RateLimitDelay:    15 * time.Second,
			PacingDelay:       time.Second,
		},
		SMTP:   SMTPSettings{Port: 587},
		Server: ServerSettings{Port: "8080"},
	}
}

// LoadSettings builds Settings from defaults, the optional YAML file named by
// ETL_CONFIG_FILE and the process environment, in that order, then validates.
// Call godotenv.Load before it to pick up a .env file.
func LoadSettings() (*Settings, error) {
	settings := DefaultSettings()

	if path := strings.TrimSpace(os.Getenv("ETL_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&settings, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks settings against their validation tags.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequireAPI checks the settings only the pipeline needs.
func (s *Settings) RequireAPI() error {
	if s.API.Key == "" || s.API.BaseURL == "" {
		return errors.New("API_KEY or BASE_URL is not set")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

type lookupFunc func(string) (string, bool)

func applyEnv(s *Settings, lookup lookupFunc) error {
	str := func(dst *string, names ...string) {
		if v, ok := firstEnv(lookup, names...); ok {
			*dst = v
		}
	}
	var errs []string
	dur := func(dst *time.Duration, names ...string) {
		if v, ok := firstEnv(lookup, names...); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", names[0], err))
				return
			}
			*dst = d
		}
	}
	integer := func(dst *int, names ...string) {
		if v, ok := firstEnv(lookup, names...); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", names[0], err))
				return
			}
			*dst = n
		}
	}
	boolean := func(dst *bool, names ...string) {
		if v, ok := firstEnv(lookup, names...); ok {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}

	str(&s.Environment, "ENVIRONMENT")
	str(&s.LogDir, "LOG_DIR")
	boolean(&s.DebugSQL, "DEBUG_SQL")

	str(&s.API.Key, "API_KEY")
	str(&s.API.BaseURL, "BASE_URL")
	dur(&s.API.Timeout, "HTTP_TIMEOUT")
	var breakerFailures int
	integer(&breakerFailures, "BREAKER_FAILURES")
	if breakerFailures > 0 {
		s.API.BreakerFailures = uint32(breakerFailures)
	}
	dur(&s.API.BreakerTimeout, "BREAKER_TIMEOUT")

	str(&s.Database.Driver, "DB_DRIVER")
	str(&s.Database.Host, "DB_HOST")
	str(&s.Database.Port, "DB_PORT")
	str(&s.Database.Name, "DB_NAME", "DB_DATABASE")
	str(&s.Database.User, "DB_USER", "DB_USERNAME")
	str(&s.Database.Password, "DB_PASSWORD")

	str(&s.Pipeline.StartDate, "START_DATE", "start_date")
	str(&s.Pipeline.EndDate, "END_DATE", "end_date")
	integer(&s.Pipeline.MaxRetries, "MAX_RETRIES")
	dur(&s.Pipeline.InitialRetryDelay, "INITIAL_RETRY_DELAY")
	dur(&s.Pipeline.RateLimitDelay, "RATE_LIMIT_DELAY")
	dur(&s.Pipeline.PacingDelay, "PACING_DELAY")
	boolean(&s.Pipeline.AutoMigrate, "DB_AUTO_MIGRATE")

	str(&s.SMTP.Host, "SMTP_HOST")
	integer(&s.SMTP.Port, "SMTP_PORT")
	str(&s.SMTP.User, "SMTP_USER")
	str(&s.SMTP.Pass, "SMTP_PASS")
	str(&s.SMTP.From, "SMTP_FROM")
	boolean(&s.SMTP.SkipTLSVerify, "SMTP_SKIP_TLS_VERIFY")
	if v, ok := firstEnv(lookup, "NOTIFY_EMAILS"); ok {
		s.SMTP.NotifyEmails = splitList(v)
	}

	str(&s.Server.Port, "SERVER_PORT")
	str(&s.Server.GinMode, "GIN_MODE")
	str(&s.Server.JWTSecret, "API_JWT_SECRET")

	str(&s.Telemetry.PushgatewayURL, "PUSHGATEWAY_URL")

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func firstEnv(lookup lookupFunc, names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// parseDuration accepts Go durations ("1500ms") and plain seconds ("15").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
