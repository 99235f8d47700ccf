package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/distrubuted-game-mechanic/round-engine/internal/engine"
	"github.com/distrubuted-game-mechanic/round-engine/internal/oracle"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// Store drivers
const (
	DriverMemory    = "memory"
	DriverRedis     = "redis"
	DriverCassandra = "cassandra"
)

// Config holds all configuration for the application
type Config struct {
	Host           string
	Port           string
	RequestTimeout time.Duration
	Log            LogConfig
	StoreDriver    string
	Redis          RedisConfig
	SessionTTL     time.Duration
	Cassandra      CassandraConfig
	Rules          engine.Rules
	Coordinator    CoordinatorConfig
	Oracle         OracleConfig
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level    string
	Encoding string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CassandraConfig holds Cassandra-specific configuration
type CassandraConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	Consistency string
	Timeout     time.Duration
}

// CoordinatorConfig holds the operator saga configuration
type CoordinatorConfig struct {
	Enabled        bool
	Schedule       string
	Operator       string
	CreateSchedule string
	GameType       types.GameType
	EntryFee       uint64
	StartDelay     time.Duration
}

// OracleConfig holds price feed and validation configuration
type OracleConfig struct {
	Thresholds     oracle.Thresholds
	HermesEndpoint string
	BTCFeedID      string
	SOLFeedID      string
}

// Load reads an optional .env file, then loads configuration from
// environment variables.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment is authoritative.
	_ = godotenv.Load()

	host := getEnv("HOST", "0.0.0.0")
	port := getEnv("PORT", "8080")
	requestTimeout, err := seconds("REQUEST_TIMEOUT_SECONDS", "10")
	if err != nil {
		return nil, err
	}

	driver := getEnv("STORE_DRIVER", DriverMemory)
	switch driver {
	case DriverMemory, DriverRedis, DriverCassandra:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER value: %q", driver)
	}

	// Redis configuration
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}

	// Ledger TTL (0 = no expiration)
	sessionTTL, err := seconds("SESSION_TTL_SECONDS", "0")
	if err != nil {
		return nil, err
	}

	cassandraTimeout, err := seconds("CASSANDRA_TIMEOUT_SECONDS", "5")
	if err != nil {
		return nil, err
	}

	rules, err := loadRules()
	if err != nil {
		return nil, err
	}

	coordinator, err := loadCoordinator()
	if err != nil {
		return nil, err
	}

	oracleConfig, err := loadOracle()
	if err != nil {
		return nil, err
	}

	return &Config{
		Host:           host,
		Port:           port,
		RequestTimeout: requestTimeout,
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		StoreDriver: driver,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		SessionTTL: sessionTTL,
		Cassandra: CassandraConfig{
			Hosts:       parseHosts(getEnv("CASSANDRA_HOSTS", "localhost:9042")),
			Keyspace:    getEnv("CASSANDRA_KEYSPACE", "round_engine"),
			Username:    getEnv("CASSANDRA_USERNAME", ""),
			Password:    getEnv("CASSANDRA_PASSWORD", ""),
			Consistency: getEnv("CASSANDRA_CONSISTENCY", "QUORUM"),
			Timeout:     cassandraTimeout,
		},
		Rules:       rules,
		Coordinator: coordinator,
		Oracle:      oracleConfig,
	}, nil
}

// loadRules overrides the default game rules from the environment and validates them.
func loadRules() (engine.Rules, error) {
	rules := engine.DefaultRules()

	roundCount, err := strconv.Atoi(getEnv("ROUND_COUNT", strconv.Itoa(rules.RoundCount)))
	if err != nil {
		return rules, fmt.Errorf("invalid ROUND_COUNT value: %w", err)
	}
	if roundCount != rules.RoundCount {
		rules.RoundCount = roundCount
		rules.RoundTypes = nil
	}
	if raw := getEnv("ROUND_TYPES", ""); raw != "" {
		rules.RoundTypes = parseRoundTypes(raw)
	} else if rules.RoundTypes == nil {
		rules.RoundTypes = cycleRoundTypes(roundCount)
	}

	if rules.RoundDuration, err = seconds("ROUND_DURATION_SECONDS", formatSeconds(rules.RoundDuration)); err != nil {
		return rules, err
	}
	if rules.RoundGap, err = seconds("ROUND_GAP_SECONDS", formatSeconds(rules.RoundGap)); err != nil {
		return rules, err
	}
	if rules.Lockout, err = seconds("LOCKOUT_SECONDS", formatSeconds(rules.Lockout)); err != nil {
		return rules, err
	}
	if rules.RegistrationClose, err = seconds("REGISTRATION_CLOSE_SECONDS", formatSeconds(rules.RegistrationClose)); err != nil {
		return rules, err
	}

	if rules.MaxPlayers, err = strconv.Atoi(getEnv("MAX_PLAYERS", strconv.Itoa(rules.MaxPlayers))); err != nil {
		return rules, fmt.Errorf("invalid MAX_PLAYERS value: %w", err)
	}
	if rules.MinPlayers, err = strconv.Atoi(getEnv("MIN_PLAYERS", strconv.Itoa(rules.MinPlayers))); err != nil {
		return rules, fmt.Errorf("invalid MIN_PLAYERS value: %w", err)
	}

	feeBps, err := strconv.ParseUint(getEnv("PLATFORM_FEE_BPS", strconv.Itoa(int(rules.PlatformFeeBps))), 10, 16)
	if err != nil {
		return rules, fmt.Errorf("invalid PLATFORM_FEE_BPS value: %w", err)
	}
	rules.PlatformFeeBps = uint16(feeBps)

	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("invalid game rules: %w", err)
	}
	return rules, nil
}

func loadCoordinator() (CoordinatorConfig, error) {
	enabled, err := strconv.ParseBool(getEnv("COORDINATOR_ENABLED", "false"))
	if err != nil {
		return CoordinatorConfig{}, fmt.Errorf("invalid COORDINATOR_ENABLED value: %w", err)
	}

	entryFee, err := strconv.ParseUint(getEnv("COORDINATOR_ENTRY_FEE", "10000"), 10, 64)
	if err != nil {
		return CoordinatorConfig{}, fmt.Errorf("invalid COORDINATOR_ENTRY_FEE value: %w", err)
	}

	startDelay, err := seconds("COORDINATOR_START_DELAY_SECONDS", "1800")
	if err != nil {
		return CoordinatorConfig{}, err
	}

	gameType := types.GameType(getEnv("COORDINATOR_GAME_TYPE", string(types.GameBtcOnly)))
	if !gameType.Valid() {
		return CoordinatorConfig{}, fmt.Errorf("invalid COORDINATOR_GAME_TYPE value: %q", gameType)
	}

	return CoordinatorConfig{
		Enabled:        enabled,
		Schedule:       getEnv("COORDINATOR_SCHEDULE", "*/5 * * * * *"),
		Operator:       getEnv("OPERATOR_ID", "operator"),
		CreateSchedule: getEnv("COORDINATOR_CREATE_SCHEDULE", ""),
		GameType:       gameType,
		EntryFee:       entryFee,
		StartDelay:     startDelay,
	}, nil
}

func loadOracle() (OracleConfig, error) {
	thresholds := oracle.DefaultThresholds()

	staleness, err := seconds("ORACLE_STALENESS_SECONDS", formatSeconds(thresholds.Staleness))
	if err != nil {
		return OracleConfig{}, err
	}
	thresholds.Staleness = staleness

	if thresholds.Confidence, err = strconv.ParseUint(getEnv("ORACLE_CONFIDENCE_MAX", strconv.FormatUint(thresholds.Confidence, 10)), 10, 64); err != nil {
		return OracleConfig{}, fmt.Errorf("invalid ORACLE_CONFIDENCE_MAX value: %w", err)
	}

	publishers, err := strconv.ParseUint(getEnv("ORACLE_MIN_PUBLISHERS", strconv.FormatUint(uint64(thresholds.MinPublishers), 10)), 10, 32)
	if err != nil {
		return OracleConfig{}, fmt.Errorf("invalid ORACLE_MIN_PUBLISHERS value: %w", err)
	}
	thresholds.MinPublishers = uint32(publishers)

	return OracleConfig{
		Thresholds:     thresholds,
		HermesEndpoint: getEnv("PYTH_HERMES_URL", oracle.DefaultHermesEndpoint),
		BTCFeedID:      getEnv("PYTH_BTC_PRICE_FEED", ""),
		SOLFeedID:      getEnv("PYTH_SOL_PRICE_FEED", ""),
	}, nil
}

// Address returns the full address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// seconds parses an integer number of seconds, rejecting negatives.
func seconds(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s value: must not be negative", key)
	}
	return time.Duration(n) * time.Second, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}

// parseHosts parses a comma-separated list of hosts
func parseHosts(hostsStr string) []string {
	parts := strings.Split(hostsStr, ",")
	hosts := make([]string, 0, len(parts))
	for _, part := range parts {
		host := strings.TrimSpace(part)
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return []string{"localhost:9042"}
	}
	return hosts
}

// parseRoundTypes parses a comma-separated round type list. Validation
// happens in Rules.Validate.
func parseRoundTypes(raw string) []types.RoundType {
	parts := strings.Split(raw, ",")
	out := make([]types.RoundType, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, types.RoundType(t))
		}
	}
	return out
}

// cycleRoundTypes repeats the default ordering to fill n rounds.
func cycleRoundTypes(n int) []types.RoundType {
	if n <= 0 {
		return nil
	}
	out := make([]types.RoundType, n)
	for i := range out {
		out[i] = types.DefaultRoundTypes[i%len(types.DefaultRoundTypes)]
	}
	return out
}
