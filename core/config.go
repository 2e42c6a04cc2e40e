package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage engines
const (
	StorageMemory    = "memory"
	StoragePostgres  = "postgres"
	StorageFirestore = "firestore"
)

// Identity providers
const (
	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
)

type (
	ServerConfig struct {
		Address         string
		DebugAddress    string
		Host            string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	FirebaseConfig struct {
		ProjectID       string
		CredentialsFile string
	}

	ExchangeRateConfig struct {
		URL      string
		Fallback float64
		TTL      time.Duration
		Timeout  time.Duration
	}

	RedisConfig struct {
		Address  string
		Password string
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string

		JWTExpirationDelta time.Duration

		StorageEngine    string
		IdentityProvider string
		StripeSecretKey  string

		Server       ServerConfig
		Database     DatabaseConfig
		Firebase     FirebaseConfig
		ExchangeRate ExchangeRateConfig
		Redis        RedisConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if present) and the environment.
// Environment variables are prefixed with the current env, eg. DEV_STORAGE_ENGINE=postgres.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "ISMIS")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("storage.engine", StorageMemory)
	v.SetDefault("identity.provider", IdentityLocal)
	v.SetDefault("stripe.secretKey", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ismis")
	v.SetDefault("database.user", "ismis")
	v.SetDefault("database.password", "ismis")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("firebase.projectId", "")
	v.SetDefault("firebase.credentialsFile", "")

	v.SetDefault("exchangeRate.url", "https://api.exchangerate-api.com/v4/latest/USD")
	v.SetDefault("exchangeRate.fallback", 157.19)
	v.SetDefault("exchangeRate.ttl", time.Hour)
	v.SetDefault("exchangeRate.timeout", 5*time.Second)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),

		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),

		StorageEngine:    strings.ToLower(v.GetString("storage.engine")),
		IdentityProvider: strings.ToLower(v.GetString("identity.provider")),
		StripeSecretKey:  v.GetString("stripe.secretKey"),

		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			Host:            v.GetString("server.host"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       v.GetString("firebase.projectId"),
			CredentialsFile: v.GetString("firebase.credentialsFile"),
		},
		ExchangeRate: ExchangeRateConfig{
			URL:      v.GetString("exchangeRate.url"),
			Fallback: v.GetFloat64("exchangeRate.fallback"),
			TTL:      v.GetDuration("exchangeRate.ttl"),
			Timeout:  v.GetDuration("exchangeRate.timeout"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
		},

		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}
