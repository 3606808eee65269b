package config

import (
	"errors"
	"fmt"
	"time"
)

// ChannelConfig describes a channel created at startup.
type ChannelConfig struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Topic string `mapstructure:"topic" yaml:"topic"`
}

// Config holds server configuration values.
type Config struct {
	ServerName      string          `mapstructure:"server_name" yaml:"server_name"`
	Version         string          `mapstructure:"version" yaml:"version"`
	Addr            string          `mapstructure:"addr" yaml:"addr"`
	AdminAddr       string          `mapstructure:"admin_addr" yaml:"admin_addr"`
	DatabasePath    string          `mapstructure:"database_path" yaml:"database_path"`
	LogLevel        string          `mapstructure:"log_level" yaml:"log_level"`
	PingInterval    time.Duration   `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongTimeout     time.Duration   `mapstructure:"pong_timeout" yaml:"pong_timeout"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout" yaml:"read_timeout"`
	ListThrottle    time.Duration   `mapstructure:"list_throttle" yaml:"list_throttle"`
	FloodLimit      int             `mapstructure:"flood_limit" yaml:"flood_limit"`
	SendQueue       int             `mapstructure:"send_queue" yaml:"send_queue"`
	JWTSecret       string          `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer       string          `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	TokenTTL        time.Duration   `mapstructure:"token_ttl" yaml:"token_ttl"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DefaultChannels []ChannelConfig `mapstructure:"default_channels" yaml:"default_channels"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerName:      "MyIRCServer",
		Version:         "1.0.1",
		Addr:            ":6667",
		AdminAddr:       "127.0.0.1:8080",
		DatabasePath:    "ircchat.db",
		LogLevel:        "info",
		PingInterval:    30 * time.Second,
		PongTimeout:     10 * time.Second,
		ReadTimeout:     60 * time.Second,
		SendQueue:       256,
		JWTSecret:       "change-me",
		JWTIssuer:       "ircchat",
		TokenTTL:        24 * time.Hour,
		ShutdownTimeout: 5 * time.Second,
		DefaultChannels: []ChannelConfig{
			{Name: "#main", Topic: "Welcome to the main channel!"},
			{Name: "#help", Topic: "Get help with IRC commands and features"},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerName != "" {
		c.ServerName = other.ServerName
	}
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.PongTimeout != 0 {
		c.PongTimeout = other.PongTimeout
	}
	if other.ReadTimeout != 0 {
		c.ReadTimeout = other.ReadTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.ServerName == "" {
		errs = append(errs, errors.New("server_name is required"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, fmt.Errorf("ping_interval must be positive, got %s", c.PingInterval))
	}
	if c.PongTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pong_timeout must be positive, got %s", c.PongTimeout))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read_timeout must be positive, got %s", c.ReadTimeout))
	}
	if c.SendQueue <= 0 {
		errs = append(errs, fmt.Errorf("send_queue must be positive, got %d", c.SendQueue))
	}
	if c.FloodLimit < 0 {
		errs = append(errs, fmt.Errorf("flood_limit must not be negative, got %d", c.FloodLimit))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	return errors.Join(errs...)
}

// ClientConfig holds chat client configuration values.
type ClientConfig struct {
	ServerAddr  string        `mapstructure:"server_addr" yaml:"server_addr"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	Realname    string        `mapstructure:"realname" yaml:"realname"`
	Register    bool          `mapstructure:"register" yaml:"register"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	LogLevel    string        `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultClient returns client configuration defaults.
func DefaultClient() ClientConfig {
	return ClientConfig{
		ServerAddr:  "localhost:6667",
		MaxRetries:  5,
		RetryDelay:  5 * time.Second,
		ReadTimeout: 30 * time.Second,
		DialTimeout: 10 * time.Second,
		LogLevel:    "warn",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *ClientConfig) UpdateFrom(other ClientConfig) {
	if other.ServerAddr != "" {
		c.ServerAddr = other.ServerAddr
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.Password != "" {
		c.Password = other.Password
	}
	if other.Realname != "" {
		c.Realname = other.Realname
	}
	if other.Register {
		c.Register = true
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// Validate rejects values the client cannot run with.
func (c ClientConfig) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server_addr is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay))
	}
	return errors.Join(errs...)
}
