package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/pkg/utils"
)

type contextKey string

const (
	// Token Expiration Durations
	AccessTokenDuration = 15 * time.Minute

	// Context Keys
	UserClaimKey contextKey = "user_claims"

	// Query parameter used by websocket clients that cannot set headers
	AccessTokenQueryParam = "token"
)

// Backbone kinds for cross-process event fan-out
const (
	BackboneRedis = "redis"
	BackboneKafka = "kafka"
	BackboneLocal = "local"
)

// Roles allowed to run operational endpoints
const (
	RoleAdmin = "admin"
	RoleOps   = "ops"
)

// UserClaims is the payload for the Access Token
type UserClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	Env        string
	InstanceID string
	HTTPAddr   string
	DBDsn      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret string

	SoftClose SoftCloseConfig
	Proxy     ProxyConfig
	Events    EventsConfig

	LotCloserSchedule string
	LotCacheTTL       time.Duration
	BidTimeout        time.Duration

	Minio MinioConfig
}

type SoftCloseConfig struct {
	Window time.Duration
	// 0 means no cap.
	MaxExtensions int
	// 0 means no cap.
	MaxTotalExtension time.Duration
}

type ProxyConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	// 0 derives the cap from the registered ceilings.
	MaxRounds int
	// Bounds resolution after a bid commits, independent of the request.
	ResolveTimeout time.Duration
}

type EventsConfig struct {
	Backbone     string
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string
	Shards       int
	Buffer       int
}

type MinioConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	LedgerBucket string
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Env:        utils.GetEnv("GO_ENV", "development"),
		InstanceID: utils.GetEnv("INSTANCE_ID", defaultInstanceID()),
		HTTPAddr: fmt.Sprintf("%s:%s",
			utils.GetEnv("SERVER_HOST", "0.0.0.0"),
			utils.GetEnv("SERVER_PORT", "8080"),
		),
		DBDsn:             utils.GetEnv("DB_DSN", ""),
		RedisAddr:         utils.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     utils.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:           utils.GetIntEnv("REDIS_DB", 0),
		AccessTokenSecret: utils.GetEnv("ACCESS_TOKEN_SECRET", ""),
		SoftClose: SoftCloseConfig{
			Window:            utils.GetDurationEnv("SOFT_CLOSE_WINDOW", 5*time.Minute),
			MaxExtensions:     utils.GetIntEnv("SOFT_CLOSE_MAX_EXTENSIONS", 0),
			MaxTotalExtension: utils.GetDurationEnv("SOFT_CLOSE_MAX_TOTAL", 0),
		},
		Proxy: ProxyConfig{
			MaxAttempts:    utils.GetIntEnv("PROXY_MAX_ATTEMPTS", 5),
			RetryBackoff:   utils.GetDurationEnv("PROXY_RETRY_BACKOFF", 10*time.Millisecond),
			MaxRounds:      utils.GetIntEnv("PROXY_MAX_ROUNDS", 0),
			ResolveTimeout: utils.GetDurationEnv("PROXY_RESOLVE_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			Backbone:     utils.GetEnv("EVENT_BACKBONE", BackboneRedis),
			RedisChannel: utils.GetEnv("EVENT_CHANNEL", "bidding:events"),
			KafkaBrokers: utils.SplitCSV(utils.GetEnv("KAFKA_BROKERS", "localhost:9092")),
			KafkaTopic:   utils.GetEnv("KAFKA_TOPIC", "bidding-events"),
			Shards:       utils.GetIntEnv("EVENT_SHARDS", 16),
			Buffer:       utils.GetIntEnv("EVENT_BUFFER", 1024),
		},
		LotCloserSchedule: utils.GetEnv("LOT_CLOSER_SCHEDULE", "*/5 * * * * *"),
		LotCacheTTL:       utils.GetDurationEnv("LOT_CACHE_TTL", 30*time.Second),
		BidTimeout:        utils.GetDurationEnv("BID_TIMEOUT", 5*time.Second),
		Minio: MinioConfig{
			Endpoint:     utils.GetEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:    utils.GetEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:    utils.GetEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:       utils.GetBoolEnv("MINIO_USE_SSL", false),
			LedgerBucket: utils.GetEnv("LEDGER_BUCKET", "bid-ledgers"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultInstanceID is the host name, falling back to a random id. It names
// the instance's kafka consumer group.
func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func (c Config) Validate() error {
	if c.DBDsn == "" {
		return errors.New("DB_DSN is required")
	}
	if c.AccessTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if c.SoftClose.Window <= 0 {
		return errors.New("SOFT_CLOSE_WINDOW must be > 0")
	}
	if c.SoftClose.MaxExtensions < 0 || c.SoftClose.MaxTotalExtension < 0 {
		return errors.New("soft close caps must not be negative")
	}
	if c.Proxy.MaxAttempts <= 0 {
		return errors.New("PROXY_MAX_ATTEMPTS must be > 0")
	}
	if c.Events.Shards <= 0 || c.Events.Buffer <= 0 {
		return errors.New("EVENT_SHARDS and EVENT_BUFFER must be > 0")
	}
	switch c.Events.Backbone {
	case BackboneRedis, BackboneLocal:
	case BackboneKafka:
		if len(c.Events.KafkaBrokers) == 0 || c.Events.KafkaTopic == "" {
			return errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka backbone")
		}
		if c.InstanceID == "" {
			return errors.New("INSTANCE_ID is required for the kafka backbone")
		}
	default:
		return fmt.Errorf("unknown EVENT_BACKBONE %q", c.Events.Backbone)
	}
	if c.BidTimeout <= 0 {
		return errors.New("BID_TIMEOUT must be > 0")
	}
	return nil
}
