// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/aristath/stockselect/internal/modules/runs"
	"github.com/aristath/stockselect/internal/utils"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Catalog source names
const (
	SourceCSV = "csv"
	SourceS3  = "s3"
	SourceDB  = "db"
)

// Config holds application configuration
type Config struct {
	DataDir           string        `toml:"data_dir"` // Directory holding universe.db and runs.db (always absolute after Load)
	Port              int           `toml:"port"`
	LogLevel          string        `toml:"log_level"`
	DevMode           bool          `toml:"dev_mode"`
	AllowedOrigins    []string      `toml:"allowed_origins"`
	MaxConcurrentRuns int           `toml:"max_concurrent_runs"`
	RunRetentionDays  int           `toml:"run_retention_days"` // 0 keeps history forever
	Catalog           CatalogConfig `toml:"catalog"`
	S3                S3Config      `toml:"s3"`
	Redis             RedisConfig   `toml:"redis"`
	Strategies        runs.Defaults `toml:"strategies"`
}

// CatalogConfig selects where the catalog comes from
type CatalogConfig struct {
	Source          string `toml:"source"`
	CSVPath         string `toml:"csv_path"`
	RefreshSchedule string `toml:"refresh_schedule"` // cron spec with seconds; empty disables
	PublishToS3     bool   `toml:"publish_to_s3"`    // upload summaries after ingest
}

// S3Config locates the summary object
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Key            string `toml:"key"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RedisConfig enables the result cache when Addr is set
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir:           "./data",
		Port:              8080,
		LogLevel:          "info",
		MaxConcurrentRuns: runs.DefaultMaxConcurrentRuns,
		RunRetentionDays:  30,
		Catalog: CatalogConfig{
			Source:          SourceCSV,
			CSVPath:         "./data/stocks_data.csv",
			RefreshSchedule: "0 0 6 * * *",
		},
		S3: S3Config{
			Region: "us-east-1",
			Key:    "stocks_data.csv",
		},
		Redis: RedisConfig{
			TTLSeconds: 3600,
		},
		Strategies: runs.DefaultDefaults(),
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// STOCKSELECT_CONFIG, then environment variables (.env is read first).
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path := getEnv("STOCKSELECT_CONFIG", ""); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a TOML file on top of the current values
func (c *Config) LoadFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("STOCKSELECT_DATA_DIR", c.DataDir)
	c.Port = getEnvAsInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DevMode = getEnvAsBool("DEV_MODE", c.DevMode)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = utils.ParseCSV(origins)
	}
	c.MaxConcurrentRuns = getEnvAsInt("MAX_CONCURRENT_RUNS", c.MaxConcurrentRuns)
	c.RunRetentionDays = getEnvAsInt("RUN_RETENTION_DAYS", c.RunRetentionDays)

	c.Catalog.Source = getEnv("CATALOG_SOURCE", c.Catalog.Source)
	c.Catalog.CSVPath = getEnv("CATALOG_CSV_PATH", c.Catalog.CSVPath)
	c.Catalog.RefreshSchedule = getEnv("CATALOG_REFRESH_SCHEDULE", c.Catalog.RefreshSchedule)
	c.Catalog.PublishToS3 = getEnvAsBool("CATALOG_PUBLISH_TO_S3", c.Catalog.PublishToS3)

	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Key = getEnv("S3_KEY", c.S3.Key)
	c.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.ForcePathStyle = getEnvAsBool("S3_FORCE_PATH_STYLE", c.S3.ForcePathStyle)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.TTLSeconds = getEnvAsInt("REDIS_TTL_SECONDS", c.Redis.TTLSeconds)

	s := &c.Strategies
	s.Genetic.PopulationSize = getEnvAsInt("GENETIC_POPULATION_SIZE", s.Genetic.PopulationSize)
	s.Genetic.Generations = getEnvAsInt("GENETIC_GENERATIONS", s.Genetic.Generations)
	s.Genetic.MutationRate = getEnvAsFloat("GENETIC_MUTATION_RATE", s.Genetic.MutationRate)
	s.Swarm.Particles = getEnvAsInt("SWARM_PARTICLES", s.Swarm.Particles)
	s.Swarm.Iterations = getEnvAsInt("SWARM_ITERATIONS", s.Swarm.Iterations)
	s.Swarm.Inertia = getEnvAsFloat("SWARM_INERTIA", s.Swarm.Inertia)
	s.Swarm.Cognitive = getEnvAsFloat("SWARM_COGNITIVE", s.Swarm.Cognitive)
	s.Swarm.Social = getEnvAsFloat("SWARM_SOCIAL", s.Swarm.Social)
	s.QLearning.Episodes = getEnvAsInt("QLEARNING_EPISODES", s.QLearning.Episodes)
	s.QLearning.Epsilon = getEnvAsFloat("QLEARNING_EPSILON", s.QLearning.Epsilon)
	s.QLearning.LearningRate = getEnvAsFloat("QLEARNING_LEARNING_RATE", s.QLearning.LearningRate)
	s.QLearning.Discount = getEnvAsFloat("QLEARNING_DISCOUNT", s.QLearning.Discount)
	s.MeanVariance.MaxWeight = getEnvAsFloat("MEANVARIANCE_MAX_WEIGHT", s.MeanVariance.MaxWeight)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", c.MaxConcurrentRuns)
	}
	if c.RunRetentionDays < 0 {
		return fmt.Errorf("run_retention_days must not be negative, got %d", c.RunRetentionDays)
	}

	switch c.Catalog.Source {
	case SourceCSV:
		if c.Catalog.CSVPath == "" {
			return fmt.Errorf("catalog source csv requires csv_path")
		}
	case SourceS3:
		if c.S3.Bucket == "" || c.S3.Key == "" {
			return fmt.Errorf("catalog source s3 requires bucket and key")
		}
	case SourceDB:
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if c.Catalog.PublishToS3 && c.S3.Bucket == "" {
		return fmt.Errorf("publish_to_s3 requires an s3 bucket")
	}

	if c.Catalog.RefreshSchedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Catalog.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid refresh_schedule %q: %w", c.Catalog.RefreshSchedule, err)
		}
	}

	if err := c.Strategies.Validate(); err != nil {
		return fmt.Errorf("invalid strategy defaults: %w", err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
