// server/config/config.go
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- Sub-structs, mirroring the YAML layout ---

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

// StorageConfig selects the alert store. "mongo" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

// Enabled reports whether enough S3 settings are present to upload.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

type MapsConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	BaseURL string `mapstructure:"baseURL"`
}

// HardwareConfig is the field-device endpoint. Carried for deployments, no route uses it yet.
type HardwareConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Type string `mapstructure:"type"` // local | redis
	TTL  string `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

type RateLimitConfig struct {
	PublicAlerts string `mapstructure:"publicAlerts"` // limiter format, e.g. "10-M"
}

// --- Main Config struct ---

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	S3        S3Config        `mapstructure:"s3"`
	Maps      MapsConfig      `mapstructure:"maps"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "vitalroute")
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("maps.baseURL", "https://maps.googleapis.com")
	v.SetDefault("nats.subject", "vitalroute.alerts.changed")
	v.SetDefault("cache.type", "local")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("rateLimit.publicAlerts", "10-M")
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (config Config, err error) {
	if _, statErr := os.Stat(".env"); statErr == nil {
		if err = godotenv.Load(); err != nil {
			return
		}
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "GIN_MODE")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.dbName", "MONGO_DBNAME")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	v.BindEnv("maps.apiKey", "MAPS_API_KEY")
	v.BindEnv("maps.baseURL", "MAPS_BASE_URL")
	v.BindEnv("hardware.endpoint", "HARDWARE_ENDPOINT")
	v.BindEnv("nats.url", "NATS_URL")
	v.BindEnv("nats.subject", "NATS_SUBJECT")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("cache.type", "CACHE_TYPE")
	v.BindEnv("cache.ttl", "CACHE_TTL")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("rateLimit.publicAlerts", "RATE_LIMIT_PUBLIC_ALERTS")

	// A missing config file is fine; env vars and defaults cover it.
	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
