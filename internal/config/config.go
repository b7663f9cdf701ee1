// Package config provides configuration management for the reputation engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Providers ProvidersConfig
	Ledger    LedgerConfig
	Holdings  HoldingsConfig
	Social    SocialConfig
	Stats     StatsConfig
	Rewards   RewardsConfig
	Referral  ReferralConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AdminToken guards operator endpoints; empty disables them
	AdminToken string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection string used by pgx and golang-migrate.
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration.
// The points ledger is optional; when Enabled is false no connection is made.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ProvidersConfig holds credentials for the outbound data providers
type ProvidersConfig struct {
	Covalent CovalentConfig
	Neynar   NeynarConfig
}

// CovalentConfig configures the transaction history and balances provider
type CovalentConfig struct {
	APIKey    string
	BaseURL   string
	ChainName string
	Timeout   time.Duration
}

// NeynarConfig configures the social graph provider
type NeynarConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// TokenContract is an allow-listed ERC-20 contract whose transfers count toward USD volume
type TokenContract struct {
	Address  string
	Symbol   string
	Decimals int32
}

// LedgerConfig holds transaction history pagination settings
type LedgerConfig struct {
	MaxPages       int
	PageSize       int
	PageDelay      time.Duration
	TokenAllowList []TokenContract
}

// HoldingsConfig maps badge keys to the contract that grants them
type HoldingsConfig struct {
	BadgeContracts map[string]string
}

// SocialConfig holds social feed pagination settings
type SocialConfig struct {
	MaxPages     int
	PageSize     int
	PopularLimit int
}

// StatsConfig holds stats cache policy.
// A zero FreshnessWindow means every request refetches.
type StatsConfig struct {
	FreshnessWindow time.Duration
	TTL             time.Duration
}

// RewardsConfig holds point amounts for player actions
type RewardsConfig struct {
	CheckInPoints int64
}

// ReferralConfig holds referral sweep settings
type ReferralConfig struct {
	SweepSchedule  string
	WorkerPoolSize int
}

// RateLimitConfig holds inbound API limits and the shared outbound provider budget.
// A zero ProviderRequestsPerSecond disables the provider budget.
type RateLimitConfig struct {
	RequestsPerSecond         float64
	Burst                     int
	ProviderRequestsPerSecond int
	ProviderMaxWait           time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// DefaultCheckInPoints is awarded for every accepted daily check-in
const DefaultCheckInPoints int64 = 10

// DefaultTokenAllowList is the stablecoin set on Base whose transfers count as volume.
var DefaultTokenAllowList = []TokenContract{
	{Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Decimals: 6},
	{Address: "0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca", Symbol: "USDbC", Decimals: 6},
	{Address: "0x50c5725949a6f0c72e6c4a641f24049a917db0cb", Symbol: "DAI", Decimals: 18},
}

// DefaultBadgeContracts is the closed badge table.
var DefaultBadgeContracts = map[string]string{
	"usdc":    "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	"cbeth":   "0x2ae3f1ec7f1f5012cfeab0185bfc7aa3cf0dec22",
	"cbbtc":   "0xcbb7c0000ab88b473b1f5afd9ef808440eed33bf",
	"degen":   "0x4ed4e862860bed51a9570b96d89af5e1b0efefed",
	"brett":   "0x532f27101965dd16442e59d40670faf5ebb142e4",
	"toshi":   "0xac1bd2486aaf3b5c0fc3fd868558b082a531b2b4",
	"aero":    "0x940181a94a35a4569e4529a3cdfb74e38fd98631",
	"higher":  "0x0578d8a44db98b23bf096a382e016e29a5ce0ffe",
	"virtual": "0x0b3e328455c4059eeb9e3f84b5543f74e24e7e1b",
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	tokens, err := parseTokenAllowList(getEnv("LEDGER_TOKEN_ALLOWLIST", ""))
	if err != nil {
		return nil, err
	}
	badges, err := parseBadgeContracts(getEnv("HOLDINGS_BADGE_CONTRACTS", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AdminToken:      getEnv("ADMIN_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "reputation"),
				User:           getEnv("POSTGRES_USER", "reputation"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "reputation"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Providers: ProvidersConfig{
			Covalent: CovalentConfig{
				APIKey:    getEnv("COVALENT_API_KEY", ""),
				BaseURL:   getEnv("COVALENT_BASE_URL", "https://api.covalenthq.com/v1"),
				ChainName: getEnv("COVALENT_CHAIN", "base-mainnet"),
				Timeout:   getEnvAsDuration("COVALENT_TIMEOUT", 30*time.Second),
			},
			Neynar: NeynarConfig{
				APIKey:  getEnv("NEYNAR_API_KEY", ""),
				BaseURL: getEnv("NEYNAR_BASE_URL", "https://api.neynar.com/v2/farcaster"),
				Timeout: getEnvAsDuration("NEYNAR_TIMEOUT", 15*time.Second),
			},
		},
		Ledger: LedgerConfig{
			MaxPages:       getEnvAsInt("LEDGER_MAX_PAGES", 500),
			PageSize:       getEnvAsInt("LEDGER_PAGE_SIZE", 100),
			PageDelay:      getEnvAsDuration("LEDGER_PAGE_DELAY", 250*time.Millisecond),
			TokenAllowList: tokens,
		},
		Holdings: HoldingsConfig{
			BadgeContracts: badges,
		},
		Social: SocialConfig{
			MaxPages:     getEnvAsInt("SOCIAL_MAX_PAGES", 1000),
			PageSize:     getEnvAsInt("SOCIAL_PAGE_SIZE", 150),
			PopularLimit: getEnvAsInt("SOCIAL_POPULAR_LIMIT", 10),
		},
		Stats: StatsConfig{
			FreshnessWindow: getEnvAsDuration("STATS_FRESHNESS_WINDOW", time.Hour),
			TTL:             getEnvAsDuration("STATS_CACHE_TTL", 30*24*time.Hour),
		},
		Rewards: RewardsConfig{
			CheckInPoints: int64(getEnvAsInt("REWARDS_CHECKIN_POINTS", int(DefaultCheckInPoints))),
		},
		Referral: ReferralConfig{
			SweepSchedule:  getEnv("REFERRAL_SWEEP_SCHEDULE", "@every 1h"),
			WorkerPoolSize: getEnvAsInt("REFERRAL_WORKER_POOL_SIZE", 8),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),

			ProviderRequestsPerSecond: getEnvAsInt("PROVIDER_REQUESTS_PER_SECOND", 4),
			ProviderMaxWait:           getEnvAsDuration("PROVIDER_MAX_WAIT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// parseTokenAllowList parses "address:decimals:symbol" entries separated by commas.
func parseTokenAllowList(raw string) ([]TokenContract, error) {
	if strings.TrimSpace(raw) == "" {
		out := make([]TokenContract, len(DefaultTokenAllowList))
		copy(out, DefaultTokenAllowList)
		return out, nil
	}

	var tokens []TokenContract
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid token allow-list entry %q: want address:decimals[:symbol]", entry)
		}
		decimals, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil || decimals < 0 {
			return nil, fmt.Errorf("invalid decimals in token allow-list entry %q", entry)
		}
		token := TokenContract{
			Address:  strings.ToLower(parts[0]),
			Decimals: int32(decimals),
		}
		if len(parts) > 2 {
			token.Symbol = parts[2]
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// parseBadgeContracts parses "key:address" entries separated by commas.
func parseBadgeContracts(raw string) (map[string]string, error) {
	badges := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		for k, v := range DefaultBadgeContracts {
			badges[k] = v
		}
		return badges, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, address, ok := strings.Cut(entry, ":")
		if !ok || key == "" || address == "" {
			return nil, fmt.Errorf("invalid badge entry %q: want key:address", entry)
		}
		badges[key] = strings.ToLower(address)
	}
	return badges, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value.
// "0" is accepted and yields a zero duration.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
