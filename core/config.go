package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug        bool   `mapstructure:"debug"`
		TestMode     bool   `mapstructure:"testMode"`
		Env          string `mapstructure:"env"`
		Build        string `mapstructure:"build"`
		AppName      string `mapstructure:"appName"`
		SecretKey    string `mapstructure:"secretKey"`
		RollbarToken string `mapstructure:"rollbarToken"`
		TimeZone     string `mapstructure:"timeZone"`
		WorkDir      string `mapstructure:"-"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Storage  StorageConfig  `mapstructure:"storage"`
	}

	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		Port                      int           `mapstructure:"port"`
		DebugHost                 string        `mapstructure:"debugHost"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdownTimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtExpirationDelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtRefreshExpirationDelta"`
		AllowedOrigins            []string      `mapstructure:"allowedOrigins"`
		DisableReqLogs            bool          `mapstructure:"disableReqLogs"`
		// PublicParticipantAPI serves the quiz client and dashboard read routes without a token.
		PublicParticipantAPI      bool          `mapstructure:"publicParticipantAPI"`
	}

	DatabaseConfig struct {
		Engine          string        `mapstructure:"engine"` // mysql | postgres
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		Name            string        `mapstructure:"name"`
		User            string        `mapstructure:"user"`
		Password        string        `mapstructure:"password"`
		AdminUser       string        `mapstructure:"adminUser"`
		AdminPassword   string        `mapstructure:"adminPassword"`
		DisableTLS      bool          `mapstructure:"disableTLS"`
		MaxOpenConns    int           `mapstructure:"maxOpenConns"`
		MaxIdleConns    int           `mapstructure:"maxIdleConns"`
		ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	}

	StorageConfig struct {
		ImagesDir    string `mapstructure:"imagesDir"`
		ImagesURL    string `mapstructure:"imagesURL"`
		MaxImageSize int64  `mapstructure:"maxImageSize"`
	}
)

func (c ServerConfig) Address() string {
	return hostPort(c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return hostPort(c.Host, c.Port)
}

// Location returns the time zone used to compute "today". Falls back to UTC.
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// legacy variable names still used by deployment scripts
var envAliases = map[string]string{
	"database.host":     "DB_HOST",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"secretKey":         "JWT_SECRET",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "QuestTrack")
	v.SetDefault("secretKey", "q7!ts-0x$kd=4mn@pz9l&u+2e(hg)#w5r8c^v1b*ja6fyo3")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("timeZone", "UTC")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.debugHost", "0.0.0.0:5001")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.publicParticipantAPI", true)

	v.SetDefault("database.engine", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.name", "questtrack")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)

	v.SetDefault("storage.imagesDir", filepath.Join("public", "images"))
	v.SetDefault("storage.imagesURL", "/images")
	v.SetDefault("storage.maxImageSize", 5<<20)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if any) and the environment.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.Set("env", env)
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range envAliases {
		if _, ok := os.LookupEnv(name); ok {
			_ = v.BindEnv(key, name)
		}
	}

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal(): %v", err)
	}
	conf.WorkDir = wd
	if !filepath.IsAbs(conf.Storage.ImagesDir) {
		conf.Storage.ImagesDir = filepath.Join(wd, conf.Storage.ImagesDir)
	}
	return conf
}
