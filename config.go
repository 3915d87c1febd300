package mailbus

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config represents the main config
type Config struct {
	DB struct {
		Type           string // "sqlite", "postgres" or "bolt"
		Path           string
		DSN            string
		MaxConnections int `mapstructure:"max_connections"`
	}

	HTTP struct {
		Addr   string
		Domain string
	}

	Log struct {
		Level  string
		Format string
	}

	Email struct {
		Provider string // "smtp", "postmark", "ses" or "resend"
		Sender   string
		Timeout  time.Duration
	}

	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
	}

	Postmark struct {
		BaseURL string `mapstructure:"base_url"`
		Token   string
	}

	SES struct {
		Region    string
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	}

	Resend struct {
		APIKey string `mapstructure:"api_key"`
	}

	Newsletter struct {
		ProductName string        `mapstructure:"product_name"`
		BatchSize   int           `mapstructure:"batch_size"`
		BatchDelay  time.Duration `mapstructure:"batch_delay"`
		HMAC        struct {
			Secret string
		}
	}

	Auth struct {
		Workers        int
		EqualizeTiming bool `mapstructure:"equalize_timing"`
		Argon2         struct {
			Memory      uint32
			Iterations  uint32
			Parallelism uint8
		}
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	RateLimit struct {
		Enabled bool
		Limit   int
		Window  time.Duration
	} `mapstructure:"rate_limit"`

	Sentry struct {
		DSN string
	}
}

// LoadConfig reads config.yaml from the working directory or ./config when
// present, then applies MAILBUS_* environment variables on top of it.
// A non-empty path names the config file explicitly.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	v.SetEnvPrefix("MAILBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	return &config, nil
}

// SetDefaults registers every key so that environment variables can set it
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db.type", "sqlite")
	v.SetDefault("db.path", "mailbus.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_connections", 25)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.domain", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.sender", "")
	v.SetDefault("email.timeout", "10s")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")

	v.SetDefault("postmark.base_url", "https://api.postmarkapp.com")
	v.SetDefault("postmark.token", "")

	v.SetDefault("ses.region", "us-east-1")
	v.SetDefault("ses.access_key", "")
	v.SetDefault("ses.secret_key", "")

	v.SetDefault("resend.api_key", "")

	v.SetDefault("newsletter.product_name", "Mailbus")
	v.SetDefault("newsletter.batch_size", 20)
	v.SetDefault("newsletter.batch_delay", "500ms")
	v.SetDefault("newsletter.hmac.secret", "")

	v.SetDefault("auth.workers", 0)
	v.SetDefault("auth.equalize_timing", true)
	v.SetDefault("auth.argon2.memory", 19*1024)
	v.SetDefault("auth.argon2.iterations", 2)
	v.SetDefault("auth.argon2.parallelism", 1)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", "15m")

	v.SetDefault("sentry.dsn", "")
}
