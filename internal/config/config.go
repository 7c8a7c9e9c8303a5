package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/denisbaic/smarthouse/internal/house"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Streaming StreamingConfig `yaml:"streaming" toml:"streaming"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	House     HouseConfig     `yaml:"house" toml:"house"`
}

// ServerConfig contains STP listener configuration. Timeouts are in seconds.
// A zero max_message_size, timeout or sessions_per_second disables that limit.
type ServerConfig struct {
	TCPAddress        string  `yaml:"tcp_address" toml:"tcp_address"`
	UDPAddress        string  `yaml:"udp_address" toml:"udp_address"`
	MaxMessageSize    int     `yaml:"max_message_size" toml:"max_message_size"`
	HandshakeTimeout  int     `yaml:"handshake_timeout" toml:"handshake_timeout"`
	ReadTimeout       int     `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout      int     `yaml:"write_timeout" toml:"write_timeout"`
	SessionsPerSecond float64 `yaml:"sessions_per_second" toml:"sessions_per_second"`
	SessionBurst      int     `yaml:"session_burst" toml:"session_burst"`
}

// StreamingConfig contains device report stream configuration. The request
// delay is counted in ticks of delay_unit_ms; max_streams 0 disables the cap.
type StreamingConfig struct {
	DefaultRequestDelay uint64 `yaml:"default_request_delay" toml:"default_request_delay"`
	DelayUnitMs         int    `yaml:"delay_unit_ms" toml:"delay_unit_ms"`
	MaxStreams          int    `yaml:"max_streams" toml:"max_streams"`
	ShutdownTimeout     int    `yaml:"shutdown_timeout" toml:"shutdown_timeout"` // seconds
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port" toml:"port"`
	Address string `yaml:"address" toml:"address"`
	Enabled bool   `yaml:"enabled" toml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// HouseConfig seeds the house served by the server. No rooms means the
// built-in demo house.
type HouseConfig struct {
	Rooms []RoomConfig `yaml:"rooms" toml:"rooms"`
}

// RoomConfig describes one room and its devices
type RoomConfig struct {
	Name    string         `yaml:"name" toml:"name"`
	Devices []DeviceConfig `yaml:"devices" toml:"devices"`
}

// DeviceConfig describes one device with a fixed reading
type DeviceConfig struct {
	Name  string  `yaml:"name" toml:"name"`
	Kind  string  `yaml:"kind" toml:"kind"` // thermometer or socket
	Value float64 `yaml:"value" toml:"value"`
	Units string  `yaml:"units" toml:"units"` // thermometers: c, f or k, celsius when empty
	Off   bool    `yaml:"off" toml:"off"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			TCPAddress:        "127.0.0.1:8080",
			UDPAddress:        "127.0.0.1:8082",
			MaxMessageSize:    1 << 20,
			HandshakeTimeout:  5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			SessionsPerSecond: 100,
			SessionBurst:      50,
		},
		Streaming: StreamingConfig{
			DefaultRequestDelay: 5,
			DelayUnitMs:         1000,
			MaxStreams:          1000,
			ShutdownTimeout:     10,
		},
		HTTP: HTTPConfig{
			Port:    9090,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Streaming.Validate(); err != nil {
		return fmt.Errorf("streaming config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.House.Validate(); err != nil {
		return fmt.Errorf("house config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if err := validateHostPort("tcp_address", s.TCPAddress); err != nil {
		return err
	}

	if err := validateHostPort("udp_address", s.UDPAddress); err != nil {
		return err
	}

	if s.MaxMessageSize < 0 || int64(s.MaxMessageSize) > math.MaxUint32 {
		return fmt.Errorf("max_message_size must be between 0 and %d, got %d", uint32(math.MaxUint32), s.MaxMessageSize)
	}

	if s.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake_timeout cannot be negative, got %d", s.HandshakeTimeout)
	}

	if s.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout cannot be negative, got %d", s.ReadTimeout)
	}

	if s.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout cannot be negative, got %d", s.WriteTimeout)
	}

	if s.SessionsPerSecond < 0 {
		return fmt.Errorf("sessions_per_second cannot be negative, got %f", s.SessionsPerSecond)
	}

	if s.SessionsPerSecond > 0 && s.SessionBurst < 1 {
		return fmt.Errorf("session_burst must be at least 1 when sessions_per_second is set, got %d", s.SessionBurst)
	}

	return nil
}

// Validate validates streaming configuration
func (s *StreamingConfig) Validate() error {
	if s.DefaultRequestDelay < 1 {
		return fmt.Errorf("default_request_delay must be at least 1, got %d", s.DefaultRequestDelay)
	}

	if s.DelayUnitMs < 1 {
		return fmt.Errorf("delay_unit_ms must be at least 1, got %d", s.DelayUnitMs)
	}

	if s.MaxStreams < 0 {
		return fmt.Errorf("max_streams cannot be negative, got %d", s.MaxStreams)
	}

	if s.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", s.ShutdownTimeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration. Output may be stdout, stderr or a file path.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Validate checks the seed by building it
func (h *HouseConfig) Validate() error {
	if len(h.Rooms) == 0 {
		return nil
	}
	for _, room := range h.Rooms {
		if room.Name == "" {
			return fmt.Errorf("room name cannot be empty")
		}
		for _, device := range room.Devices {
			if device.Name == "" {
				return fmt.Errorf("room %s: device name cannot be empty", room.Name)
			}
		}
	}
	_, err := house.Build(h.RoomSpecs())
	return err
}

// RoomSpecs converts the seed for house.Build
func (h *HouseConfig) RoomSpecs() []house.RoomSpec {
	specs := make([]house.RoomSpec, 0, len(h.Rooms))
	for _, room := range h.Rooms {
		spec := house.RoomSpec{Name: room.Name}
		for _, device := range room.Devices {
			spec.Devices = append(spec.Devices, house.DeviceSpec{
				Name:  device.Name,
				Kind:  device.Kind,
				Value: device.Value,
				Units: device.Units,
				Off:   device.Off,
			})
		}
		specs = append(specs, spec)
	}
	return specs
}

// BuildHouse returns the configured house, or the demo house when no rooms are configured
func (h *HouseConfig) BuildHouse() (*house.House, error) {
	if len(h.Rooms) == 0 {
		return house.Default(), nil
	}
	return house.Build(h.RoomSpecs())
}

// GetHandshakeTimeoutDuration returns the handshake timeout as a time.Duration
func (s *ServerConfig) GetHandshakeTimeoutDuration() time.Duration {
	return time.Duration(s.HandshakeTimeout) * time.Second
}

// GetReadTimeoutDuration returns the read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetDelayUnit returns the length of one request_delay tick
func (s *StreamingConfig) GetDelayUnit() time.Duration {
	return time.Duration(s.DelayUnitMs) * time.Millisecond
}

// GetShutdownTimeoutDuration returns the shutdown timeout as a time.Duration
func (s *StreamingConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetAddress returns the HTTP listen address
func (h *HTTPConfig) GetAddress() string {
	return net.JoinHostPort(h.Address, fmt.Sprintf("%d", h.Port))
}

func validateHostPort(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s must be host:port, got '%s'", field, addr)
	}
	return nil
}
