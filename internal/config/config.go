// Package config loads process configuration for the bridge: database
// connection, EIP backend selector, default SNMP/MQTT tuning, and the
// ambient HTTP/logging surface. Mirrors the viper-based config layer
// the rest of this module's lineage uses, generalized with an EIP
// selector and polling-tuning knobs.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	SNMP     SNMPConfig     `mapstructure:"snmp"`
	EIP      EIPConfig      `mapstructure:"eip"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig is the ambient HTTP ops surface listen address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite or postgres
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GetDSN returns the database connection string for the configured driver.
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.DSN
	}
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host + " port=" + strconv.Itoa(c.Port) + " user=" + c.User +
		" password=" + c.Password + " dbname=" + c.DBName + " sslmode=disable"
}

// MQTTConfig carries defaults applied to broker records that omit a
// value; the broker credentials themselves live in the config store.
type MQTTConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ClientIDPrefix string        `mapstructure:"client_id_prefix"`
}

// SNMPConfig carries defaults applied to device records and fixed
// protocol timing constants, exposed as overridable knobs per
// SPEC_FULL.md §6.
type SNMPConfig struct {
	DefaultCommunity string        `mapstructure:"default_community"`
	DefaultVersion   string        `mapstructure:"default_version"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RequestRetries   int           `mapstructure:"request_retries"`
	WriteCap         time.Duration `mapstructure:"write_cap"`
	WalkCap          time.Duration `mapstructure:"walk_cap"`
	WalkMaxEntries   int           `mapstructure:"walk_max_entries"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ConnectRetries   int           `mapstructure:"connect_retries"`
}

// EIPConfig selects the EIP backend implementation.
type EIPConfig struct {
	Backend string `mapstructure:"backend"` // PYLOGIX | CPPPO | MOCK
}

// PollingConfig carries the polling engine's fixed constants, exposed
// as overridable defaults; the defaults equal the spec's constants.
type PollingConfig struct {
	WorkersPerLoop      int           `mapstructure:"workers_per_loop"`
	CycleInterval       time.Duration `mapstructure:"cycle_interval"`
	TaskCeiling         time.Duration `mapstructure:"task_ceiling"`
	ReconnectInterval   time.Duration `mapstructure:"reconnect_interval"`
	SupervisorTick      time.Duration `mapstructure:"supervisor_tick"`
	LogThrottle         time.Duration `mapstructure:"log_throttle"`
	SampleRetentionDays int           `mapstructure:"sample_retention_days"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from /data, ., ./config (in that order) and
// the BRIDGE-prefixed environment, applying defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/data")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/bridge.db")

	v.SetDefault("mqtt.connect_timeout", "5s")
	v.SetDefault("mqtt.client_id_prefix", "industrial-bridge")

	v.SetDefault("snmp.default_community", "public")
	v.SetDefault("snmp.default_version", "v2c")
	v.SetDefault("snmp.request_timeout", "5s")
	v.SetDefault("snmp.request_retries", 2)
	v.SetDefault("snmp.write_cap", "8s")
	v.SetDefault("snmp.walk_cap", "15s")
	v.SetDefault("snmp.walk_max_entries", 100)
	v.SetDefault("snmp.connect_timeout", "2s")
	v.SetDefault("snmp.connect_retries", 1)

	v.SetDefault("eip.backend", "MOCK")

	v.SetDefault("polling.workers_per_loop", 5)
	v.SetDefault("polling.cycle_interval", "500ms")
	v.SetDefault("polling.task_ceiling", "10s")
	v.SetDefault("polling.reconnect_interval", "10s")
	v.SetDefault("polling.supervisor_tick", "10s")
	v.SetDefault("polling.log_throttle", "30s")
	v.SetDefault("polling.sample_retention_days", 7)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
