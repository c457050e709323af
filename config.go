package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverRedis  = "redis"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string        `yaml:"git_commit" envconfig:"LEND_GIT_COMMIT"`
	GitTag             string        `yaml:"git_tag" envconfig:"LEND_GIT_TAG"`
	BuildTime          string        `yaml:"build_time" envconfig:"LEND_BUILD_TIME"`
	IsProduction       bool          `yaml:"is_production" envconfig:"LEND_IS_PRODUCTION"`
	LogLevel           zapcore.Level `yaml:"log_level" envconfig:"LEND_LOG_LEVEL"`
	LogFolder          string        `yaml:"log_folder" envconfig:"LEND_LOG_FOLDER"`
	LogMaxSize         int           `yaml:"log_max_size" envconfig:"LEND_LOG_MAX_SIZE"` // in megabytes
	ProfilerEnable     bool          `yaml:"profiler_enable" envconfig:"LEND_PROFILER_ENABLE"`
	OpsEndpointsEnable bool          `yaml:"ops_endpoints_enable" envconfig:"LEND_OPS_ENDPOINTS_ENABLE"`
	Server             ServerConfig  `yaml:"server"`
	Storage            StorageConfig `yaml:"storage"`
	Redis              RedisConfig   `yaml:"redis"`
	BoltDB             BoltDBConfig  `yaml:"boltdb"`
	SQLite             SQLiteConfig  `yaml:"sqlite"`
	Audit              AuditConfig   `yaml:"audit"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host" envconfig:"LEND_SERVER_HOST"`
	Port                    string        `yaml:"port" envconfig:"LEND_SERVER_PORT"`
	ReadTimeout             time.Duration `yaml:"read_timeout" envconfig:"LEND_SERVER_READ_TIMEOUT"`
	WriteTimeout            time.Duration `yaml:"write_timeout" envconfig:"LEND_SERVER_WRITE_TIMEOUT"`
	LongRequestWriteTimeout time.Duration `yaml:"long_request_write_timeout" envconfig:"LEND_SERVER_LONG_REQUEST_WRITE_TIMEOUT"`
	RequestTimeout          time.Duration `yaml:"request_timeout" envconfig:"LEND_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout" envconfig:"LEND_SERVER_SHUTDOWN_TIMEOUT"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"LEND_STORAGE_DRIVER"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"LEND_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"LEND_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"LEND_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"LEND_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"LEND_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"LEND_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"LEND_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"LEND_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"LEND_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"LEND_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath string        `yaml:"filepath" envconfig:"LEND_BOLTDB_FILE_PATH"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"LEND_BOLTDB_TIMEOUT"`
}

type SQLiteConfig struct {
	FilePath    string        `yaml:"filepath" envconfig:"LEND_SQLITE_FILE_PATH"`
	BusyTimeout time.Duration `yaml:"busy_timeout" envconfig:"LEND_SQLITE_BUSY_TIMEOUT"`
}

// AuditConfig drives the stock events journal. Events go through the redis
// queue when enabled and are kept in the boltdb file.
type AuditConfig struct {
	Enable bool   `yaml:"enable" envconfig:"LEND_AUDIT_ENABLE"`
	Queue  string `yaml:"queue" envconfig:"LEND_AUDIT_QUEUE"`
}

// NeedsRedis reports whether a redis connection must be set up.
func (c *Config) NeedsRedis() bool {
	return c.Storage.Driver == DriverRedis || c.Audit.Enable
}

// NeedsBoltDB reports whether the boltdb file must be opened.
func (c *Config) NeedsBoltDB() bool {
	return c.Storage.Driver == DriverBolt || c.Audit.Enable
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	if len(config.Storage.Driver) == 0 {
		config.Storage.Driver = DriverRedis
	}

	switch config.Storage.Driver {
	case DriverRedis, DriverBolt, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q, expected one of redis, bolt, sqlite", config.Storage.Driver)
	}

	if config.NeedsRedis() && (len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0) {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	if config.NeedsBoltDB() && len(config.BoltDB.FilePath) == 0 {
		return errors.New("make sure to set valid boltdb file path in configuration file")
	}

	if config.Storage.Driver == DriverSQLite && len(config.SQLite.FilePath) == 0 {
		return errors.New("make sure to set valid sqlite file path in configuration file")
	}

	if len(config.Audit.Queue) == 0 {
		config.Audit.Queue = DefaultStockEventsQueue
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration.
	err = godotenv.Load("./config.env")
	if err != nil {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `LEND`.
	err = LoadConfigEnvs("LEND", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
