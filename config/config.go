package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort int

	StorageDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	DataDir    string
	RecordsCSV string

	JWTSecret       string
	SessionTTLHours int
	PlanLockMonths  int
	DetailsCacheTTL int

	TelegramBotToken string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3KeyPrefix       string

	PipelineDrivers int
	PipelineSeed    uint64
	ForestWorkers   int
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "telematics"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))

	cfg.StorageDriver = cast.ToString(getOrReturnDefault("STORAGE_DRIVER", "postgres"))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "driver_portal"))

	cfg.DataDir = cast.ToString(getOrReturnDefault("DATA_DIR", "data"))
	cfg.RecordsCSV = cast.ToString(getOrReturnDefault("RECORDS_CSV", "data/driver_data.csv"))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", "change-me"))
	cfg.SessionTTLHours = cast.ToInt(getOrReturnDefault("SESSION_TTL_HOURS", 24))
	cfg.PlanLockMonths = cast.ToInt(getOrReturnDefault("PLAN_LOCK_MONTHS", 12))
	cfg.DetailsCacheTTL = cast.ToInt(getOrReturnDefault("DETAILS_CACHE_TTL_SECONDS", 60))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))

	cfg.S3Bucket = cast.ToString(getOrReturnDefault("S3_BUCKET", ""))
	cfg.S3Region = cast.ToString(getOrReturnDefault("S3_REGION", "us-east-1"))
	cfg.S3Endpoint = cast.ToString(getOrReturnDefault("S3_ENDPOINT", ""))
	cfg.S3AccessKeyID = cast.ToString(getOrReturnDefault("S3_ACCESS_KEY_ID", ""))
	cfg.S3SecretAccessKey = cast.ToString(getOrReturnDefault("S3_SECRET_ACCESS_KEY", ""))
	cfg.S3KeyPrefix = cast.ToString(getOrReturnDefault("S3_KEY_PREFIX", "pipeline"))

	cfg.PipelineDrivers = cast.ToInt(getOrReturnDefault("PIPELINE_DRIVERS", 100))
	cfg.PipelineSeed = cast.ToUint64(getOrReturnDefault("PIPELINE_SEED", 42))
	cfg.ForestWorkers = cast.ToInt(getOrReturnDefault("FOREST_WORKERS", 4))

	return cfg
}

// PostgresURL builds the connection string shared by the pool and the migrator.
func (c Config) PostgresURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword + "@" +
		c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
