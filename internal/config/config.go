package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	ASR        ASRConfig        `yaml:"asr"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	StateSink  StateSinkConfig  `yaml:"state_sink"`
	Guard      GuardConfig      `yaml:"guard"`
	Booking    BookingConfig    `yaml:"booking"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP/websocket server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ReadLimitBytes int64    `yaml:"read_limit_bytes"`
}

// AudioConfig contains inbound audio parameters
type AudioConfig struct {
	InputSampleRate  int `yaml:"input_sample_rate"`  // companded telephony rate (8000 Hz)
	TargetSampleRate int `yaml:"target_sample_rate"` // rate required by the speech engine (16000 Hz)
}

// ASRConfig contains speech recognition engine configuration
type ASRConfig struct {
	AccessKey        string  `yaml:"access_key"`
	MaxEngines       int     `yaml:"max_engines"`
	EndpointDuration float64 `yaml:"endpoint_duration"` // seconds of trailing silence marking an utterance boundary
	AutoPunctuation  bool    `yaml:"auto_punctuation"`
}

// EnrichmentConfig contains AI summary configuration
type EnrichmentConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MinInterval float64 `yaml:"min_interval"` // seconds between summary refreshes
	Timeout     int     `yaml:"timeout"`      // seconds
}

// StateSinkConfig contains realtime document store configuration
type StateSinkConfig struct {
	BaseURL string `yaml:"base_url"`
	Secret  string `yaml:"secret"`
	Timeout int    `yaml:"timeout"` // seconds
}

// GuardConfig caps maximum call duration
type GuardConfig struct {
	Enabled    bool    `yaml:"enabled"`
	MaxMinutes float64 `yaml:"max_minutes"`
}

// BookingConfig contains Google Calendar booking configuration.
// Booking is disabled when CalendarID is empty.
type BookingConfig struct {
	CalendarID      string `yaml:"calendar_id"`
	CredentialsJSON string `yaml:"credentials_json"` // inline service account JSON (or base64 of it)
	CredentialsFile string `yaml:"credentials_file"`
	TimeZone        string `yaml:"time_zone"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, applies environment
// overrides for secrets, and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills zero values with service defaults
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadLimitBytes == 0 {
		c.Server.ReadLimitBytes = 1 << 20
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Audio.InputSampleRate == 0 {
		c.Audio.InputSampleRate = 8000
	}
	if c.Audio.TargetSampleRate == 0 {
		c.Audio.TargetSampleRate = 16000
	}
	if c.ASR.MaxEngines == 0 {
		c.ASR.MaxEngines = 32
	}
	if c.Enrichment.Model == "" {
		c.Enrichment.Model = "gemini-1.5-flash"
	}
	if c.Enrichment.MinInterval == 0 {
		c.Enrichment.MinInterval = 1.0
	}
	if c.Enrichment.Timeout == 0 {
		c.Enrichment.Timeout = 10
	}
	if c.StateSink.Timeout == 0 {
		c.StateSink.Timeout = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnvOverrides lets deployments keep secrets out of config files.
// Environment variables take precedence over file values when set.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHEETAH_ACCESS_KEY"); v != "" {
		c.ASR.AccessKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Enrichment.APIKey = v
	}
	if v := os.Getenv("FIREBASE_RTDB_URL"); v != "" {
		c.StateSink.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("FIREBASE_DB_SECRET"); v != "" {
		c.StateSink.Secret = v
	}
	if v := os.Getenv("CALENDAR_ID"); v != "" {
		c.Booking.CalendarID = v
	}
	if v := os.Getenv("GOOGLE_SERVICE_ACCOUNT_INFO"); v != "" {
		c.Booking.CredentialsJSON = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.Booking.CredentialsFile = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.ASR.Validate(); err != nil {
		return fmt.Errorf("asr config: %w", err)
	}

	if err := c.Enrichment.Validate(); err != nil {
		return fmt.Errorf("enrichment config: %w", err)
	}

	if err := c.StateSink.Validate(); err != nil {
		return fmt.Errorf("state_sink config: %w", err)
	}

	if err := c.Guard.Validate(); err != nil {
		return fmt.Errorf("guard config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.ReadLimitBytes < 1024 {
		return fmt.Errorf("read_limit_bytes must be at least 1024, got %d", s.ReadLimitBytes)
	}

	for _, origin := range s.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("allowed_origins must not contain empty entries")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.InputSampleRate != 8000 {
		return fmt.Errorf("input_sample_rate must be 8000 Hz for companded telephony audio, got %d", a.InputSampleRate)
	}

	if a.TargetSampleRate != 16000 {
		return fmt.Errorf("target_sample_rate must be 16000 Hz for the speech engine, got %d", a.TargetSampleRate)
	}

	return nil
}

// Validate validates ASR configuration
func (a *ASRConfig) Validate() error {
	if a.AccessKey == "" {
		return fmt.Errorf("access_key cannot be empty (set CHEETAH_ACCESS_KEY)")
	}

	if a.MaxEngines < 1 {
		return fmt.Errorf("max_engines must be at least 1, got %d", a.MaxEngines)
	}

	if a.EndpointDuration < 0 {
		return fmt.Errorf("endpoint_duration cannot be negative, got %f", a.EndpointDuration)
	}

	return nil
}

// Validate validates enrichment configuration
func (e *EnrichmentConfig) Validate() error {
	if e.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set GEMINI_API_KEY)")
	}

	if e.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if e.MinInterval <= 0 {
		return fmt.Errorf("min_interval must be positive, got %f", e.MinInterval)
	}

	if e.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", e.Timeout)
	}

	return nil
}

// Validate validates state sink configuration
func (s *StateSinkConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty (set FIREBASE_RTDB_URL)")
	}

	if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got '%s'", s.BaseURL)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	return nil
}

// Validate validates guard configuration
func (g *GuardConfig) Validate() error {
	if g.Enabled && g.MaxMinutes <= 0 {
		return fmt.Errorf("max_minutes must be positive when guard is enabled, got %f", g.MaxMinutes)
	}

	return nil
}

// Validate validates logging configuration
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

// GetEndpointDuration returns the ASR endpoint duration as a time.Duration
func (a *ASRConfig) GetEndpointDuration() time.Duration {
	return time.Duration(a.EndpointDuration * float64(time.Second))
}

// GetMinInterval returns the enrichment refresh interval as a time.Duration
func (e *EnrichmentConfig) GetMinInterval() time.Duration {
	return time.Duration(e.MinInterval * float64(time.Second))
}

// GetTimeoutDuration returns the enrichment call timeout as a time.Duration
func (e *EnrichmentConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// GetTimeoutDuration returns the state sink request timeout as a time.Duration
func (s *StateSinkConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetMaxDuration returns the guard limit as a time.Duration
func (g *GuardConfig) GetMaxDuration() time.Duration {
	return time.Duration(g.MaxMinutes * float64(time.Minute))
}
