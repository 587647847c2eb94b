package config

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	config       = viper.New()
	configHolder atomic.Value
	backend      = "consul"
	backendAddr  = "127.0.0.1:8500"
	backendPath  = "development" // e.g., app/<env>/<service_name>
	configType   = "yaml"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	AppURL     string `mapstructure:"APP_URL"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Trial struct {
		LengthDays   int           `mapstructure:"LENGTH_DAYS"`
		PriceAmount  int64         `mapstructure:"PRICE_AMOUNT"`
		Currency     string        `mapstructure:"CURRENCY"`
		Interval     string        `mapstructure:"INTERVAL"`
		SubscribeURL string        `mapstructure:"SUBSCRIBE_URL"`
		CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
		ReminderDays []int         `mapstructure:"REMINDER_DAYS"`
	} `mapstructure:"TRIAL"`
	Stripe struct {
		SecretKey     string `mapstructure:"SECRET_KEY"`
		WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
		PriceID       string `mapstructure:"PRICE_ID"`
		SuccessURL    string `mapstructure:"SUCCESS_URL"`
		CancelURL     string `mapstructure:"CANCEL_URL"`
	} `mapstructure:"STRIPE"`
	AccessControl struct {
		Enforce bool   `mapstructure:"ENFORCE"`
		Model   string `mapstructure:"MODEL"`
		Policy  string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	Consul struct {
		Addr        string `mapstructure:"ADDR"`
		ServiceHost string `mapstructure:"SERVICE_HOST"`
	} `mapstructure:"CONSUL"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Mail struct {
		Provider          string `mapstructure:"PROVIDER"`
		From              string `mapstructure:"FROM"`
		ResendAPIKey      string `mapstructure:"RESEND_API_KEY"`
		GraphTenantID     string `mapstructure:"GRAPH_TENANT_ID"`
		GraphClientID     string `mapstructure:"GRAPH_CLIENT_ID"`
		GraphClientSecret string `mapstructure:"GRAPH_CLIENT_SECRET"`
	} `mapstructure:"MAIL"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))
var RemoteModule = fx.Module("remote.config", fx.Provide(LoadRemote))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "billing")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("OTEL.PROTOCOL", "grpc")
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("TRIAL.LENGTH_DAYS", 14)
	v.SetDefault("TRIAL.PRICE_AMOUNT", 5999)
	v.SetDefault("TRIAL.CURRENCY", "MYR")
	v.SetDefault("TRIAL.INTERVAL", "month")
	v.SetDefault("TRIAL.SUBSCRIBE_URL", "/settings/billing")
	v.SetDefault("TRIAL.CACHE_TTL", time.Minute)
	v.SetDefault("TRIAL.REMINDER_DAYS", []int{3, 1})
	v.SetDefault("MAIL.PROVIDER", "log")
}

// Load reads config.yaml from dir (when present) and the environment into a Config.
func Load(v *viper.Viper, dir string) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadConfig(p Params) *Config {
	cfg, err := Load(config, ".")
	if err != nil {
		zap.L().Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		applySecrets(p.Vault, cfg)
	}

	configHolder.Store(cfg)

	return cfg
}

func LoadRemote(p Params) *Config {
	if p.Vault == nil {
		zap.L().Error("vault can't provide")
		os.Exit(1)
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
		backendAddr = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
		backendPath = v
	}

	setDefaults(config)
	config.SetConfigType(configType)
	if err := config.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
		os.Exit(1)
	}

	if err := config.ReadRemoteConfig(); err != nil {
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}

	applySecrets(p.Vault, &cfg)
	configHolder.Store(&cfg)

	go func() {
		for {
			time.Sleep(time.Second * 5)

			if err := config.WatchRemoteConfig(); err != nil {
				zap.L().Error("unable to read remote config", zap.Error(err))
				continue
			}

			var newcfg Config
			if err := config.Unmarshal(&newcfg); err != nil {
				zap.L().Error("unable to decode remote config", zap.Error(err))
				continue
			}
			applySecrets(p.Vault, &newcfg)
			configHolder.Store(&newcfg)
		}
	}()

	return &cfg
}

// Current returns the most recently loaded configuration, including remote updates.
func Current() *Config {
	if cfg, ok := configHolder.Load().(*Config); ok {
		return cfg
	}
	return nil
}

func applySecrets(client *vault.Client, cfg *Config) {
	ctx := context.Background()

	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("postgres_user", cfg.Database.User)
	cfg.Database.Password = get("postgres_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Flagsmith.ApiKey = get("flagsmith_api_key", cfg.Flagsmith.ApiKey)
	cfg.Stripe.SecretKey = get("stripe_secret_key", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = get("stripe_webhook_secret", cfg.Stripe.WebhookSecret)
	cfg.Mail.ResendAPIKey = get("resend_api_key", cfg.Mail.ResendAPIKey)
	cfg.Mail.GraphClientSecret = get("graph_client_secret", cfg.Mail.GraphClientSecret)
}
