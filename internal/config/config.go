package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport drivers.
const (
	DriverMQTT = "mqtt"
	DriverNATS = "nats"
)

const envPrefix = "JMAILBOX"

type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	Transport TransportConfig `mapstructure:"transport"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
	Liveness  LivenessConfig  `mapstructure:"liveness"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TransportConfig struct {
	Driver string `mapstructure:"driver"`
}

type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientIDPrefix string        `mapstructure:"client_id_prefix"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	QoS            byte          `mapstructure:"qos"`
}

type NATSConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// FleetConfig covers topic layout and the in-memory store bounds.
type FleetConfig struct {
	Namespace      string `mapstructure:"namespace"`
	CameraMarker   string `mapstructure:"camera_marker"`
	SeriesCapacity int    `mapstructure:"series_capacity"`
	QueueSize      int    `mapstructure:"queue_size"`
	CommandSource  string `mapstructure:"command_source"`
}

// LivenessConfig holds the silence thresholds: below Online a device is
// online, from Offline on it is offline, idle in between.
type LivenessConfig struct {
	Online  time.Duration `mapstructure:"online"`
	Offline time.Duration `mapstructure:"offline"`
}

type WebSocketConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

var (
	errInvalidThresholds = errors.New("liveness.online must be positive and below liveness.offline")
	errInvalidCapacity   = errors.New("fleet.series_capacity must be > 0")
	errInvalidQueueSize  = errors.New("fleet.queue_size must be > 0")
	errInvalidNamespace  = errors.New("fleet.namespace must be non-empty and must not contain '/', '+' or '#'")
	errInvalidQoS        = errors.New("mqtt.qos must be 0, 1 or 2")
)

// SetDefaults registers a default for every key so that a missing config file
// still yields a usable configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("transport.driver", DriverMQTT)

	v.SetDefault("mqtt.broker", "tcp://broker.hivemq.com:1883")
	v.SetDefault("mqtt.client_id_prefix", "dashboard")
	v.SetDefault("mqtt.keep_alive", 60*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.publish_timeout", 5*time.Second)
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.name", "jmailbox-dashboard")

	v.SetDefault("fleet.namespace", "jmailbox")
	v.SetDefault("fleet.camera_marker", "cam")
	v.SetDefault("fleet.series_capacity", 100)
	v.SetDefault("fleet.queue_size", 1024)
	v.SetDefault("fleet.command_source", "dashboard")

	v.SetDefault("liveness.online", 30*time.Second)
	v.SetDefault("liveness.offline", 120*time.Second)

	v.SetDefault("websocket.interval", time.Second)
}

// Load reads configs/config.yml (if present) from the given search paths,
// applies JMAILBOX_* environment overrides and validates the result.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Transport.Driver = strings.ToLower(strings.TrimSpace(cfg.Transport.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Liveness.Online <= 0 || c.Liveness.Online >= c.Liveness.Offline {
		return errInvalidThresholds
	}
	if c.Fleet.SeriesCapacity <= 0 {
		return errInvalidCapacity
	}
	if c.Fleet.QueueSize <= 0 {
		return errInvalidQueueSize
	}
	if c.Fleet.Namespace == "" || strings.ContainsAny(c.Fleet.Namespace, "/+#") {
		return errInvalidNamespace
	}
	if c.MQTT.QoS > 2 {
		return errInvalidQoS
	}
	switch c.Transport.Driver {
	case DriverMQTT, DriverNATS:
	default:
		return fmt.Errorf("unknown transport.driver %q: use %q or %q", c.Transport.Driver, DriverMQTT, DriverNATS)
	}
	return nil
}
