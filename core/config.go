package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"

	StorageLocal = "local"
	StorageB2    = "b2"
)

type (
	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		SessionCookie   string
		SessionTTL      time.Duration
		FlashCookie     string
		SecureCookies   bool
		DisableCSRF     bool
		DisableReqLogs  bool
		MaxUploadSize   int64 // bytes
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	StorageConfig struct {
		Backend  string
		Root     string
		B2KeyID  string
		B2AppKey string
		B2Bucket string
	}

	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the configuration of the current ENV (DEV by default).
// Values come from viper defaults, then config/.env.<env> (if it exists), then the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Dossier")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "kq1-6s(t9@l!v3z#p=u0w8e^r7_y2xcb5*n4m&h+d$gfj)a")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("testMode", false)

	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_readTimeout", 15*time.Second)
	v.SetDefault("server_writeTimeout", 30*time.Second)
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_sessionCookie", "sessionid")
	v.SetDefault("server_sessionTTL", 14*24*time.Hour)
	v.SetDefault("server_flashCookie", "messages")
	v.SetDefault("server_secureCookies", false)
	v.SetDefault("server_disableCSRF", false)
	v.SetDefault("server_disableReqLogs", false)
	v.SetDefault("server_maxUploadSize", int64(10<<20))

	v.SetDefault("database_engine", EngineSQLite)
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "dossier")
	v.SetDefault("database_user", "dossier")
	v.SetDefault("database_password", "")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", true)
	v.SetDefault("database_path", filepath.Join("data", "dossier.db"))

	v.SetDefault("storage_backend", StorageLocal)
	v.SetDefault("storage_root", "media")
	v.SetDefault("storage_b2KeyID", "")
	v.SetDefault("storage_b2AppKey", "")
	v.SetDefault("storage_b2Bucket", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Address:         v.GetString("server_address"),
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debugHost"),
			ReadTimeout:     v.GetDuration("server_readTimeout"),
			WriteTimeout:    v.GetDuration("server_writeTimeout"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
			SessionCookie:   v.GetString("server_sessionCookie"),
			SessionTTL:      v.GetDuration("server_sessionTTL"),
			FlashCookie:     v.GetString("server_flashCookie"),
			SecureCookies:   v.GetBool("server_secureCookies"),
			DisableCSRF:     v.GetBool("server_disableCSRF"),
			DisableReqLogs:  v.GetBool("server_disableReqLogs"),
			MaxUploadSize:   v.GetInt64("server_maxUploadSize"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database_engine")),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
			Path:          v.GetString("database_path"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("storage_backend")),
			Root:     v.GetString("storage_root"),
			B2KeyID:  v.GetString("storage_b2KeyID"),
			B2AppKey: v.GetString("storage_b2AppKey"),
			B2Bucket: v.GetString("storage_b2Bucket"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: sqlite in memory, no CSRF, no request logs.
func NewTestConfig() *Config {
	return &Config{
		AppName:   "Dossier",
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		SecretKey: "test-secret-key",
		Server: ServerConfig{
			SessionCookie:  "sessionid",
			SessionTTL:     time.Hour,
			FlashCookie:    "messages",
			DisableCSRF:    true,
			DisableReqLogs: true,
			MaxUploadSize:  1 << 20,
		},
		Database: DatabaseConfig{Engine: EngineSQLite, Path: ":memory:"},
		Storage:  StorageConfig{Backend: StorageLocal},
	}
}
