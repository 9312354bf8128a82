package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends
const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

type (
	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string

		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Storage   StorageConfig
		Supabase  SupabaseConfig
		Reminders RemindersConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 float64 // requests per second per client, 0 disables
		RateBurst                 int
		MaxUploadSize             int64
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
	}

	StorageConfig struct {
		Backend  string // local, supabase or postgres
		Fallback bool   // fall back to the local store when remote writes fail
		LocalDir string
		SeedFile string
	}

	SupabaseConfig struct {
		URL        string
		AnonKey    string
		Timeout    time.Duration
		MaxRetries int
		RateLimit  float64
	}

	RemindersConfig struct {
		Enabled bool
		Spec    string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && s.AnonKey != ""
}

// NewConfig loads the configuration from defaults, the environment and an optional
// `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "FieldPro")
	v.SetDefault("secretKey", "k3u7-plw@r8!nq0$zz+1v_4hb)e9x#t2m^c6ja%d5yoi&f")
	v.SetDefault("defaultFromEmail", "FieldPro <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverReadTimeout", 5*time.Second)
	v.SetDefault("serverWriteTimeout", 10*time.Second)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("serverRateLimit", 20.0)
	v.SetDefault("serverRateBurst", 40)
	v.SetDefault("serverMaxUploadSize", int64(20<<20))

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "fieldpro")
	v.SetDefault("dbUser", "fieldpro")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("storageBackend", "")
	v.SetDefault("storageFallback", true)
	v.SetDefault("storageLocalDir", "data")
	v.SetDefault("storageSeedFile", "")

	v.SetDefault("supabaseURL", "")
	v.SetDefault("supabaseAnonKey", "")
	v.SetDefault("supabaseTimeout", 15*time.Second)
	v.SetDefault("supabaseMaxRetries", 3)
	v.SetDefault("supabaseRateLimit", 10.0)

	v.SetDefault("remindersEnabled", true)
	v.SetDefault("remindersSpec", "0 18 * * *")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	conf := &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   workDir,
		SecretKey:                 v.GetString("secretKey"),
		DefaultFromEmail:          *from,
		FrontendBaseURL:           strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ReadTimeout:               v.GetDuration("serverReadTimeout"),
			WriteTimeout:              v.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			RateLimit:                 v.GetFloat64("serverRateLimit"),
			RateBurst:                 v.GetInt("serverRateBurst"),
			MaxUploadSize:             v.GetInt64("serverMaxUploadSize"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("storageBackend")),
			Fallback: v.GetBool("storageFallback"),
			LocalDir: v.GetString("storageLocalDir"),
			SeedFile: v.GetString("storageSeedFile"),
		},
		Supabase: SupabaseConfig{
			URL:        v.GetString("supabaseURL"),
			AnonKey:    v.GetString("supabaseAnonKey"),
			Timeout:    v.GetDuration("supabaseTimeout"),
			MaxRetries: v.GetInt("supabaseMaxRetries"),
			RateLimit:  v.GetFloat64("supabaseRateLimit"),
		},
		Reminders: RemindersConfig{
			Enabled: v.GetBool("remindersEnabled"),
			Spec:    v.GetString("remindersSpec"),
		},
	}

	if !filepath.IsAbs(conf.Storage.LocalDir) {
		conf.Storage.LocalDir = filepath.Join(workDir, conf.Storage.LocalDir)
	}
	if conf.Storage.Backend == "" {
		// a configured hosted backend is preferred over the local store
		if conf.Supabase.Configured() {
			conf.Storage.Backend = BackendSupabase
		} else {
			conf.Storage.Backend = BackendLocal
		}
	}
	return conf
}
