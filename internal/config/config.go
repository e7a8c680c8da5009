package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	DefaultRPCURL          = "https://api.calibration.node.glif.io/rpc/v1"
	DefaultChainID         = 314159
	DefaultContractAddress = "0x24aEAE7fEF8714E9cF2946d4d1b6b698D3D73123"
)

type Config struct {
	Port        string
	CORSOrigins []string
	JWTSecret   string

	DB    DB
	Chain Chain
	IPFS  IPFS
}

type DB struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds a libpq style connection string.
func (d DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type Chain struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	PrivateKey      string
	PollInterval    time.Duration
}

type IPFS struct {
	APIKey     string
	NodeURL    string
	GatewayURL string
	MaxRetries int
	RetryDelay time.Duration
}

// Load reads the configuration from the environment (and .env, if present).
func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, def int64) int64 {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}

	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		CORSOrigins: splitList(getenv("CORS_ORIGINS", "*")),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		DB: DB{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Chain: Chain{
			RPCURL:          getenv("CHAIN_RPC_URL", DefaultRPCURL),
			ChainID:         intVar("CHAIN_ID", DefaultChainID),
			ContractAddress: getenv("BLOG_CONTRACT_ADDRESS", DefaultContractAddress),
			PrivateKey:      os.Getenv("CHAIN_PRIVATE_KEY"),
			PollInterval:    durVar("CHAIN_POLL_INTERVAL", time.Second),
		},
		IPFS: IPFS{
			APIKey:     os.Getenv("LIGHTHOUSE_API_KEY"),
			NodeURL:    os.Getenv("LIGHTHOUSE_NODE_URL"),
			GatewayURL: os.Getenv("IPFS_GATEWAY_URL"),
			MaxRetries: int(intVar("UPLOAD_MAX_RETRIES", 3)),
			RetryDelay: durVar("UPLOAD_RETRY_DELAY", time.Second),
		},
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if cfg.IPFS.MaxRetries < 1 {
		errs = append(errs, "UPLOAD_MAX_RETRIES must be at least 1")
	}
	if cfg.IPFS.RetryDelay <= 0 {
		errs = append(errs, "UPLOAD_RETRY_DELAY must be positive")
	}
	if cfg.Chain.PollInterval <= 0 {
		errs = append(errs, "CHAIN_POLL_INTERVAL must be positive")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
