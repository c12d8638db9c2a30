package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Chains    []ChainConfig   `mapstructure:"chains"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
}

type DBConfig struct {
	Driver     string `mapstructure:"driver"` // "postgres" or "sqlite"
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN builds the gorm postgres DSN
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// URL builds the postgres URL used by golang-migrate
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type ReconcileConfig struct {
	Cron          string        `mapstructure:"cron"`
	Lookback      time.Duration `mapstructure:"lookback"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	Concurrency   int           `mapstructure:"concurrency"`
	MaxRetry      int           `mapstructure:"max_retry"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	WatchCacheTTL time.Duration `mapstructure:"watch_cache_ttl"`
}

// ChainConfig describes one EVM network the service can reconcile against
type ChainConfig struct {
	ChainID        int64  `mapstructure:"chain_id"`
	Name           string `mapstructure:"name"`
	RpcUrl         string `mapstructure:"rpc_url"`
	BlockScanLimit uint64 `mapstructure:"block_scan_limit"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")
	viper.SetDefault("app.grpc_port", "50051")

	viper.SetDefault("db.driver", "postgres")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "market_user")
	viper.SetDefault("db.password", "market_password")
	viper.SetDefault("db.name", "market_db")
	viper.SetDefault("db.sqlite_path", "market.db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("reconcile.cron", "@every 30s")
	viper.SetDefault("reconcile.lookback", time.Hour)
	viper.SetDefault("reconcile.lock_ttl", 2*time.Minute)
	viper.SetDefault("reconcile.concurrency", 4)
	viper.SetDefault("reconcile.max_retry", 5)
	viper.SetDefault("reconcile.relay_interval", 500*time.Millisecond)
	viper.SetDefault("reconcile.watch_cache_ttl", 30*time.Second)
}
