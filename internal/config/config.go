package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	Payment     PaymentConfig
	Lock        LockConfig
	Idempotency IdempotencyConfig
	Worker      WorkerConfig
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int
	// Sarama-specific
	Version       string
	ConsumerGroup string
}

type PostgresConfig struct {
	URL string
}

// PaymentConfig carries the order and wallet business limits. Amounts are
// minor units (paise).
type PaymentConfig struct {
	MinAmount        int64
	MaxAmount        int64
	OrderExpiry      time.Duration
	WalletMaxBalance int64
	DestinationVPA   string
	AmountEpsilon    int64
}

type LockConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

type IdempotencyConfig struct {
	TTL time.Duration
}

type WorkerConfig struct {
	SweepInterval   time.Duration
	ExpireBatchSize int
	// Archiver batch flush interval
	ProcessingInterval time.Duration
}

func New() *Config {
	// .env is optional; in production the system environment wins
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env variables")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", ":8080"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			PoolSize: getInt("REDIS_POOL_SIZE", 10),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:         getEnv("KAFKA_TOPIC", "payment-events"),
			Partitions:    getInt("KAFKA_PARTITIONS", 3),
			Version:       getEnv("KAFKA_VERSION", ""),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "settlement-archiver"),
		},
		Postgres: PostgresConfig{
			URL: getEnv("POSTGRES_URL", ""),
		},
		Payment: PaymentConfig{
			MinAmount:        getInt64("PAYMENT_MIN_AMOUNT", 100),       // Rs 1
			MaxAmount:        getInt64("PAYMENT_MAX_AMOUNT", 1_000_000), // Rs 10,000
			OrderExpiry:      getDuration("PAYMENT_ORDER_EXPIRY", 15*time.Minute),
			WalletMaxBalance: getInt64("PAYMENT_WALLET_MAX_BALANCE", 10_000_000),
			DestinationVPA:   getEnv("PAYMENT_DESTINATION_VPA", ""),
			AmountEpsilon:    getInt64("PAYMENT_AMOUNT_EPSILON", 0),
		},
		Lock: LockConfig{
			Timeout:     getDuration("LOCK_TIMEOUT", 10*time.Second),
			MaxAttempts: getInt("LOCK_MAX_ATTEMPTS", 5),
			RetryDelay:  getDuration("LOCK_RETRY_DELAY", 100*time.Millisecond),
		},
		Idempotency: IdempotencyConfig{
			TTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Worker: WorkerConfig{
			SweepInterval:      getDuration("SWEEP_INTERVAL", time.Minute),
			ExpireBatchSize:    getInt("EXPIRE_BATCH_SIZE", 100),
			ProcessingInterval: getDuration("WORKER_PROCESSING_INTERVAL", 5*time.Second),
		},
	}
}

func (k *KafkaConfig) GetSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()

	if k.Version != "" {
		version, err := sarama.ParseKafkaVersion(k.Version)
		if err == nil {
			config.Version = version
		}
	}

	// Consumer settings
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.AutoCommit.Enable = true
	config.Consumer.Offsets.AutoCommit.Interval = 2 * time.Minute
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	// Settings for batch processing
	config.Consumer.Fetch.Min = 1
	config.Consumer.Fetch.Default = 1024 * 1024 // 1MB
	config.Consumer.MaxWaitTime = 100 * time.Millisecond

	// Network settings
	config.Net.MaxOpenRequests = 5
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	return config
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
