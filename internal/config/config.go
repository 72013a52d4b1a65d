// Package config loads the hub configuration from configs/config.yml, the
// environment (FEEDER_ prefix) and command-line flags, layered over defaults.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultMaxLogLength    = 10
	DefaultFetchTimeout    = 5 * time.Second
	DefaultReconnectPeriod = 5 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultMaxDevices      = 64

	BackendFile   = "file"
	BackendSQLite = "sqlite"

	envPrefix = "FEEDER"
)

// Config is the typed view over every key the hub reads.
type Config struct {
	Port     string
	LogLevel string

	MQTT      MQTTConfig
	Logs      LogsConfig
	DB        DBConfig
	Device    DeviceConfig
	Simulator SimulatorConfig
}

type MQTTConfig struct {
	URL             string
	ClientID        string
	ReconnectPeriod time.Duration
	KeepAlive       time.Duration
	ConnectTimeout  time.Duration
	CleanSession    bool
	Resubscribe     bool
}

type LogsConfig struct {
	MaxLength int
	Backend   string // file | sqlite
	Path      string
}

type DBConfig struct {
	Path string
}

type DeviceConfig struct {
	IDs            []string
	FetchTimeout   time.Duration
	Timezone       string
	FetchOnConnect bool
	MaxTracked     int
}

type SimulatorConfig struct {
	Enabled      bool
	DeviceID     string
	Address      string
	FeedDuration time.Duration
	LogInterval  time.Duration
}

// setDefaults registers every default on v. Values here apply whenever the file,
// env and flags leave a key unset.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.reconnect_period", DefaultReconnectPeriod)
	v.SetDefault("mqtt.keep_alive", DefaultKeepAlive)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.clean_session", true)
	v.SetDefault("mqtt.resubscribe", true)

	v.SetDefault("logs.max_length", DefaultMaxLogLength)
	v.SetDefault("logs.backend", BackendFile)
	v.SetDefault("logs.path", "logs/logs.json")
	v.SetDefault("db.path", "app.db")

	v.SetDefault("device.ids", []string{})
	v.SetDefault("device.fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("device.timezone", "")
	v.SetDefault("device.fetch_on_connect", true)
	v.SetDefault("device.max_tracked", DefaultMaxDevices)

	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.device_id", "simulator")
	v.SetDefault("simulator.address", "127.0.0.1")
	v.SetDefault("simulator.feed_duration", 3*time.Second)
	v.SetDefault("simulator.log_interval", time.Minute)
}

// Flags returns the command-line flags main binds into viper.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("feederhub", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to config file (default: configs/config.yml)")
	fs.String("port", "", "HTTP listen port")
	fs.String("mqtt-url", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	fs.String("log-level", "", "log level: debug|info|warn|error")
	return fs
}

// Load reads the config file (explicit path, or configs/config.yml when present),
// layers env and flags on top, and validates the result. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// legacy env names still set by existing deployments
	_ = v.BindEnv("mqtt.url", envPrefix+"_MQTT_URL", "MQTT_HOST")
	_ = v.BindEnv("logs.max_length", envPrefix+"_LOGS_MAX_LENGTH", "LOG_LENGTH")

	explicit := ""
	if fs != nil {
		explicit, _ = fs.GetString("config")
		bindFlag(v, fs, "port", "port")
		bindFlag(v, fs, "mqtt.url", "mqtt-url")
		bindFlag(v, fs, "log_level", "log-level")
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) {
	if f := fs.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:     v.GetString("port"),
		LogLevel: v.GetString("log_level"),
		MQTT: MQTTConfig{
			URL:             strings.TrimSpace(v.GetString("mqtt.url")),
			ClientID:        v.GetString("mqtt.client_id"),
			ReconnectPeriod: v.GetDuration("mqtt.reconnect_period"),
			KeepAlive:       v.GetDuration("mqtt.keep_alive"),
			ConnectTimeout:  v.GetDuration("mqtt.connect_timeout"),
			CleanSession:    v.GetBool("mqtt.clean_session"),
			Resubscribe:     v.GetBool("mqtt.resubscribe"),
		},
		Logs: LogsConfig{
			MaxLength: ParseMaxLogLength(v.GetString("logs.max_length")),
			Backend:   strings.ToLower(strings.TrimSpace(v.GetString("logs.backend"))),
			Path:      v.GetString("logs.path"),
		},
		DB: DBConfig{
			Path: v.GetString("db.path"),
		},
		Device: DeviceConfig{
			IDs:            normalizeIDs(v.GetStringSlice("device.ids")),
			FetchTimeout:   v.GetDuration("device.fetch_timeout"),
			Timezone:       v.GetString("device.timezone"),
			FetchOnConnect: v.GetBool("device.fetch_on_connect"),
			MaxTracked:     v.GetInt("device.max_tracked"),
		},
		Simulator: SimulatorConfig{
			Enabled:      v.GetBool("simulator.enabled"),
			DeviceID:     v.GetString("simulator.device_id"),
			Address:      v.GetString("simulator.address"),
			FeedDuration: v.GetDuration("simulator.feed_duration"),
			LogInterval:  v.GetDuration("simulator.log_interval"),
		},
	}
}

// ParseMaxLogLength falls back to DefaultMaxLogLength for empty, non-numeric or
// non-positive input.
func ParseMaxLogLength(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return DefaultMaxLogLength
	}
	return n
}

// normalizeIDs trims, drops empties and de-duplicates while keeping order.
// Env values arrive as one space or comma separated string.
func normalizeIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, id := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.Logs.Backend != BackendFile && cfg.Logs.Backend != BackendSQLite {
		return fmt.Errorf("logs.backend must be %q or %q, got %q", BackendFile, BackendSQLite, cfg.Logs.Backend)
	}
	if cfg.Logs.Backend == BackendFile && cfg.Logs.Path == "" {
		return errors.New("logs.path must not be empty")
	}
	if cfg.Logs.Backend == BackendSQLite && cfg.DB.Path == "" {
		return errors.New("db.path must not be empty")
	}
	if cfg.MQTT.ReconnectPeriod <= 0 {
		return errors.New("mqtt.reconnect_period must be > 0")
	}
	if cfg.MQTT.KeepAlive < time.Second {
		return errors.New("mqtt.keep_alive must be >= 1s")
	}
	if cfg.Device.FetchTimeout <= 0 {
		return errors.New("device.fetch_timeout must be > 0")
	}
	if cfg.Device.MaxTracked < len(cfg.Device.IDs) || cfg.Device.MaxTracked <= 0 {
		return fmt.Errorf("device.max_tracked must be > 0 and cover the %d configured ids", len(cfg.Device.IDs))
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	if cfg.Simulator.Enabled && cfg.Simulator.DeviceID == "" {
		return errors.New("simulator.device_id must not be empty when the simulator is enabled")
	}
	return nil
}

// Location resolves device.timezone; empty means the host's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Device.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Device.Timezone)
	if err != nil {
		return nil, fmt.Errorf("device.timezone %q: %w", c.Device.Timezone, err)
	}
	return loc, nil
}
