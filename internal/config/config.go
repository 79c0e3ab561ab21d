package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config gathers the system-wide settings for all components.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Rooms     *RoomsConfig     `json:"rooms"`
	Admission *AdmissionConfig `json:"admission"`
}

// HTTPConfig covers the single listen endpoint.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig covers per-connection transport behavior, including the
// inbound message throttle.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
	MessageRate  float64       `json:"message_rate"`
	MessageBurst int           `json:"message_burst"`
}

// RoomsConfig bounds the session registry and its reclamation schedule.
type RoomsConfig struct {
	MaxSessions    int           `json:"max_sessions"`
	GracePeriod    time.Duration `json:"grace_period"`
	ReaperInterval time.Duration `json:"reaper_interval"`
}

// AdmissionConfig bounds per-source connection rates.
type AdmissionConfig struct {
	Window        time.Duration `json:"window"`
	Budget        int           `json:"budget"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// DefaultConfig returns the settings the service ships with: a hundred
// concurrent rooms, a five-minute grace period for abandoned ones, and ten
// connections per source per minute.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
			MessageRate:  20,
			MessageBurst: 40,
		},
		Rooms: &RoomsConfig{
			MaxSessions:    100,
			GracePeriod:    5 * time.Minute,
			ReaperInterval: 60 * time.Second,
		},
		Admission: &AdmissionConfig{
			Window:        60 * time.Second,
			Budget:        10,
			SweepInterval: 5 * 60 * time.Second,
		},
	}
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}
	if c.WebSocket.MessageRate <= 0 || c.WebSocket.MessageBurst <= 0 {
		return fmt.Errorf("websocket message throttle must be positive")
	}

	if c.Rooms == nil {
		return fmt.Errorf("rooms configuration is required")
	}
	if c.Rooms.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}
	if c.Rooms.MaxSessions > 9000 {
		return fmt.Errorf("max sessions cannot exceed the 9000 four-digit codes")
	}
	if c.Rooms.GracePeriod <= 0 || c.Rooms.ReaperInterval <= 0 {
		return fmt.Errorf("room grace period and reaper interval must be positive")
	}

	if c.Admission == nil {
		return fmt.Errorf("admission configuration is required")
	}
	if c.Admission.Window <= 0 {
		return fmt.Errorf("admission window must be positive")
	}
	if c.Admission.Budget <= 0 {
		return fmt.Errorf("admission budget must be positive")
	}
	if c.Admission.SweepInterval <= 0 {
		return fmt.Errorf("admission sweep interval must be positive")
	}

	return nil
}

// LoadFromEnv overlays CHESSRELAY_* environment variables on the defaults.
// Unset or unparsable variables fall back silently.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("CHESSRELAY_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("CHESSRELAY_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if maxRooms := os.Getenv("CHESSRELAY_MAX_ROOMS"); maxRooms != "" {
		if n, err := strconv.Atoi(maxRooms); err == nil {
			config.Rooms.MaxSessions = n
		}
	}
	if grace := os.Getenv("CHESSRELAY_GRACE_PERIOD"); grace != "" {
		if d, err := time.ParseDuration(grace); err == nil {
			config.Rooms.GracePeriod = d
		}
	}
	if interval := os.Getenv("CHESSRELAY_REAPER_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Rooms.ReaperInterval = d
		}
	}
	if window := os.Getenv("CHESSRELAY_ADMISSION_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Admission.Window = d
		}
	}
	if budget := os.Getenv("CHESSRELAY_ADMISSION_BUDGET"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil {
			config.Admission.Budget = n
		}
	}
	if sweep := os.Getenv("CHESSRELAY_ADMISSION_SWEEP_INTERVAL"); sweep != "" {
		if d, err := time.ParseDuration(sweep); err == nil {
			config.Admission.SweepInterval = d
		}
	}
	if ping := os.Getenv("CHESSRELAY_WEBSOCKET_PING_INTERVAL"); ping != "" {
		if d, err := time.ParseDuration(ping); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if readTimeout := os.Getenv("CHESSRELAY_WEBSOCKET_READ_TIMEOUT"); readTimeout != "" {
		if d, err := time.ParseDuration(readTimeout); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if writeTimeout := os.Getenv("CHESSRELAY_WEBSOCKET_WRITE_TIMEOUT"); writeTimeout != "" {
		if d, err := time.ParseDuration(writeTimeout); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON parsing, with durations as strings
// like "60s" or "5m".
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Rooms     *RoomsConfigFile     `json:"rooms"`
	Admission *AdmissionConfigFile `json:"admission"`
}

type HTTPConfigFile struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval string  `json:"ping_interval"`
	ReadTimeout  string  `json:"read_timeout"`
	WriteTimeout string  `json:"write_timeout"`
	BufferSize   int     `json:"buffer_size"`
	MessageRate  float64 `json:"message_rate"`
	MessageBurst int     `json:"message_burst"`
}

type RoomsConfigFile struct {
	MaxSessions    int    `json:"max_sessions"`
	GracePeriod    string `json:"grace_period"`
	ReaperInterval string `json:"reaper_interval"`
}

type AdmissionConfigFile struct {
	Window        string `json:"window"`
	Budget        int    `json:"budget"`
	SweepInterval string `json:"sweep_interval"`
}

// LoadFromFile reads a JSON configuration file and overlays it on the
// defaults, validating the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		overlayDuration(&config.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		overlayDuration(&config.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}

	if file.WebSocket != nil {
		overlayDuration(&config.WebSocket.PingInterval, file.WebSocket.PingInterval)
		overlayDuration(&config.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		overlayDuration(&config.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		if file.WebSocket.MessageRate > 0 {
			config.WebSocket.MessageRate = file.WebSocket.MessageRate
		}
		if file.WebSocket.MessageBurst > 0 {
			config.WebSocket.MessageBurst = file.WebSocket.MessageBurst
		}
	}

	if file.Rooms != nil {
		if file.Rooms.MaxSessions > 0 {
			config.Rooms.MaxSessions = file.Rooms.MaxSessions
		}
		overlayDuration(&config.Rooms.GracePeriod, file.Rooms.GracePeriod)
		overlayDuration(&config.Rooms.ReaperInterval, file.Rooms.ReaperInterval)
	}

	if file.Admission != nil {
		overlayDuration(&config.Admission.Window, file.Admission.Window)
		if file.Admission.Budget > 0 {
			config.Admission.Budget = file.Admission.Budget
		}
		overlayDuration(&config.Admission.SweepInterval, file.Admission.SweepInterval)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors are ignored so a bad path still yields a runnable
// configuration.
func LoadConfigWithPrecedence(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}

func overlayDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}
