package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "soka"

type (
	Config struct {
		AppName              string        `mapstructure:"app_name"`
		Env                  string        `mapstructure:"env"` // DEV (local; default), TEST, QA, PROD
		Build                string        `mapstructure:"build"`
		Debug                bool          `mapstructure:"debug"`
		TestMode             bool          `mapstructure:"test_mode"`
		SecretKey            string        `mapstructure:"secret_key"`
		FrontendBaseURL      string        `mapstructure:"frontend_base_url"`
		DefaultFromEmailStr  string        `mapstructure:"default_from_email"`
		RollbarToken         string        `mapstructure:"rollbar_token"`
		SendgridAPIKey       string        `mapstructure:"sendgrid_api_key"`
		PasswordResetTimeout time.Duration `mapstructure:"password_reset_timeout"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Listing  ListingConfig  `mapstructure:"listing"`
	}

	ServerConfig struct {
		Address              string        `mapstructure:"address"`
		Host                 string        `mapstructure:"host"`
		ReadTimeout          time.Duration `mapstructure:"read_timeout"`
		WriteTimeout         time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
		JWTExpiration        time.Duration `mapstructure:"jwt_expiration"`
		JWTRefreshExpiration time.Duration `mapstructure:"jwt_refresh_expiration"`
		CORSOrigins          []string      `mapstructure:"cors_origins"`
		DisableReqLogs       bool          `mapstructure:"disable_req_logs"`
	}

	DatabaseConfig struct {
		Engine          string        `mapstructure:"engine"` // sqlite3 | postgres
		Name            string        `mapstructure:"name"`   // file path for sqlite3
		Host            string        `mapstructure:"host"`
		Port            string        `mapstructure:"port"`
		User            string        `mapstructure:"user"`
		Password        string        `mapstructure:"password"`
		DisableTLS      bool          `mapstructure:"disable_tls"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
		ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
		MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
	}

	ListingConfig struct {
		DefaultLimit int  `mapstructure:"default_limit"`
		MaxLimit     int  `mapstructure:"max_limit"`
		Strict       bool `mapstructure:"strict"` // reject unknown query params
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmailStr); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmailStr}
}

func (dc DatabaseConfig) Address() string {
	if dc.Port == "" {
		return dc.Host
	}
	return dc.Host + ":" + dc.Port
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("app_name", "Soka")
	v.SetDefault("env", env)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("secret_key", "k2n!r$8v@x0q#dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontend_base_url", "http://localhost:4200")
	v.SetDefault("default_from_email", "Soka <noreply@localhost>")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("password_reset_timeout", 3*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.jwt_expiration", 24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration", 7*24*time.Hour)
	v.SetDefault("server.cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("server.disable_req_logs", false)

	v.SetDefault("database.engine", "sqlite3")
	v.SetDefault("database.name", "soka.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disable_tls", false)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_timeout", 30*time.Second)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("listing.default_limit", 20)
	v.SetDefault("listing.max_limit", 100)
	v.SetDefault("listing.strict", true)
}

// NewConfig loads the configuration from the environment, `config/.env.<env>` (if any) and defaults.
// Environment variables are prefixed with SOKA_ and use underscores for nesting, e.g. SOKA_DATABASE_ENGINE.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v := viper.New()
	setDefaults(v, env)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(conf, hook); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return conf, nil
}
