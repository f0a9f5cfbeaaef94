package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Circuits   CircuitsConfig   `mapstructure:"circuits"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type SimulationConfig struct {
	Board            string        `mapstructure:"board"`
	Circuit          string        `mapstructure:"circuit"`
	AnalysisInterval time.Duration `mapstructure:"analysis_interval"`
	EventLogSize     int           `mapstructure:"event_log_size"`
	AutoStart        bool          `mapstructure:"auto_start"`
	PersistSnapshots bool          `mapstructure:"persist_snapshots"`
}

type AnalysisConfig struct {
	Thresholds    analysis.Thresholds `mapstructure:"thresholds"`
	SupplyVoltage float64             `mapstructure:"supply_voltage"`
	Wire          WireDefaults        `mapstructure:"wire"`
}

// WireDefaults fill the physical parameters a circuit leaves out.
type WireDefaults struct {
	Length       float64 `mapstructure:"length"`
	CrossSection float64 `mapstructure:"cross_section"`
	Material     string  `mapstructure:"material"`
}

func (w WireDefaults) Properties() analysis.WireProperties {
	return analysis.WireProperties{
		Length:       w.Length,
		CrossSection: w.CrossSection,
		Material:     analysis.Material(w.Material),
	}
}

// AuthConfig enables operator tokens on the HTTP API. PasswordHash is an
// Argon2id hash as printed by "circuitcore hash-password".
type AuthConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Secret       string        `mapstructure:"secret"`
	PasswordHash string        `mapstructure:"password_hash"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	ProtectReads bool          `mapstructure:"protect_reads"`
}

type CircuitsConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

// Load reads the YAML file at path on top of the defaults. An empty path
// uses defaults and environment only. Every key can be overridden with an
// OCC_ variable, e.g. OCC_SERVER_HTTP_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OCC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "circuitcore")
	v.SetDefault("database.user", "circuitcore")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("simulation.board", "uno")
	v.SetDefault("simulation.circuit", "")
	v.SetDefault("simulation.analysis_interval", "1s")
	v.SetDefault("simulation.event_log_size", analysis.DefaultEventLogSize)
	v.SetDefault("simulation.auto_start", false)
	v.SetDefault("simulation.persist_snapshots", false)

	th := analysis.DefaultThresholds()
	v.SetDefault("analysis.thresholds.overcurrent", th.Overcurrent)
	v.SetDefault("analysis.thresholds.overvoltage", th.Overvoltage)
	v.SetDefault("analysis.thresholds.temperature", th.Temperature)
	v.SetDefault("analysis.thresholds.voltage_drop", th.VoltageDrop)
	v.SetDefault("analysis.thresholds.power", th.Power)
	v.SetDefault("analysis.supply_voltage", 5.0)
	v.SetDefault("analysis.wire.length", 0.1)
	v.SetDefault("analysis.wire.cross_section", analysis.DefaultCrossSection)
	v.SetDefault("analysis.wire.material", string(analysis.Copper))

	v.SetDefault("circuits.search_paths", []string{"./circuits"})

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.protect_reads", false)
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}
	if c.Simulation.AnalysisInterval < 0 {
		return fmt.Errorf("invalid simulation.analysis_interval: %s", c.Simulation.AnalysisInterval)
	}
	if c.Analysis.SupplyVoltage <= 0 {
		return fmt.Errorf("invalid analysis.supply_voltage: %v", c.Analysis.SupplyVoltage)
	}
	if c.Auth.Enabled {
		if len(c.Auth.Secret) < 16 {
			return fmt.Errorf("auth.secret must be at least 16 characters")
		}
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth.password_hash is required when auth is enabled")
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("invalid auth.token_ttl: %s", c.Auth.TokenTTL)
		}
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
