package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"domino-engine/engine"
	"domino-engine/models"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration values for a session
type Config struct {
	// Session shape
	TableCount    int
	SeatsPerTable int
	HumanTable    int
	HumanSeat     int
	// HumanAddr serves the human seat over TCP instead of stdin.
	HumanAddr string

	// Scheduling
	Quantum          time.Duration
	Policy           string
	EarlyRelease     bool
	TerminationGrace time.Duration
	TurnWaitTimeout  time.Duration
	QueueCapacity    int

	// Observation
	ReportInterval time.Duration
	HistoryTail    int
	ObserverAddr   string
	AllowedOrigins string

	Redis      RedisConfig
	ResultsDSN string

	Environment string
	LogLevel    string
	LogFormat   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Load loads configuration from environment variables
func Load() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		TableCount:       getEnvInt("TABLE_COUNT", 1),
		SeatsPerTable:    getEnvInt("SEATS_PER_TABLE", 4),
		HumanTable:       getEnvInt("HUMAN_TABLE", -1),
		HumanSeat:        getEnvInt("HUMAN_SEAT", -1),
		HumanAddr:        getEnv("HUMAN_ADDR", ""),
		Quantum:          getEnvMillis("QUANTUM_MS", 50),
		Policy:           getEnv("SCHED_POLICY", "rr"),
		EarlyRelease:     getEnvBool("SCHED_EARLY_RELEASE", false),
		TerminationGrace: getEnvMillis("TERMINATION_GRACE_MS", 2000),
		TurnWaitTimeout:  getEnvMillis("TURN_WAIT_TIMEOUT_MS", 500),
		QueueCapacity:    getEnvInt("QUEUE_CAPACITY", 256),
		ReportInterval:   getEnvMillis("REPORT_INTERVAL_MS", 1000),
		HistoryTail:      getEnvInt("HISTORY_TAIL", 10),
		ObserverAddr:     getEnv("OBSERVER_ADDR", ""),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", ""),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		ResultsDSN:  getEnv("RESULTS_DSN", "file::memory:?cache=shared"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
	}
}

// Validate rejects configurations the session cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TableCount < 1 {
		errs = append(errs, fmt.Errorf("TABLE_COUNT must be at least 1, got %d", c.TableCount))
	}
	if c.SeatsPerTable < models.MinSeats || c.SeatsPerTable > models.MaxSeats {
		errs = append(errs, fmt.Errorf("SEATS_PER_TABLE must be between %d and %d, got %d",
			models.MinSeats, models.MaxSeats, c.SeatsPerTable))
	}
	if c.HumanSeat >= 0 {
		if c.HumanTable < 0 || c.HumanTable >= c.TableCount {
			errs = append(errs, fmt.Errorf("HUMAN_TABLE %d out of range for %d tables", c.HumanTable, c.TableCount))
		}
		if c.HumanSeat >= c.SeatsPerTable {
			errs = append(errs, fmt.Errorf("HUMAN_SEAT %d out of range for %d seats", c.HumanSeat, c.SeatsPerTable))
		}
	}
	for name, d := range map[string]time.Duration{
		"QUANTUM_MS":           c.Quantum,
		"TERMINATION_GRACE_MS": c.TerminationGrace,
		"TURN_WAIT_TIMEOUT_MS": c.TurnWaitTimeout,
		"REPORT_INTERVAL_MS":   c.ReportInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if _, err := engine.PolicyByName(c.Policy); err != nil {
		errs = append(errs, fmt.Errorf("SCHED_POLICY: %w", err))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// TableConfig is the per-table config for table index i.
func (c Config) TableConfig(i int) models.TableConfig {
	humanSeat := -1
	if i == c.HumanTable {
		humanSeat = c.HumanSeat
	}
	return models.TableConfig{
		Seats:            c.SeatsPerTable,
		HumanSeat:        humanSeat,
		Policy:           c.Policy,
		Quantum:          c.Quantum,
		EarlyRelease:     c.EarlyRelease,
		TurnWaitTimeout:  c.TurnWaitTimeout,
		TerminationGrace: c.TerminationGrace,
		HistoryTail:      c.HistoryTail,
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
