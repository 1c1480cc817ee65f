// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
)

type Config struct {
	Driver       DriverConfig       `yaml:"driver"`
	Loop         LoopConfig         `yaml:"loop"`
	Boards       []BoardConfig      `yaml:"boards"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	StatusMirror StatusMirrorConfig `yaml:"status_mirror"`
	Cache        CacheConfig        `yaml:"cache"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ---- DRIVER ----

const (
	DriverSim    = "sim"
	DriverModbus = "modbus"
)

type DriverConfig struct {
	Kind   string             `yaml:"kind"` // sim | modbus
	Sim    SimDriverConfig    `yaml:"sim"`
	Modbus ModbusDriverConfig `yaml:"modbus"`
}

type SimDriverConfig struct {
	Boards []SimBoardConfig `yaml:"boards"`
}

type SimBoardConfig struct {
	Model string `yaml:"model"`
	AI    int    `yaml:"ai"`
	DI    int    `yaml:"di"`
	DO    int    `yaml:"do"`
	DIO   int    `yaml:"dio"`
}

type ModbusDriverConfig struct {
	Endpoint  string              `yaml:"endpoint"` // host:port, or rtu:/dev/ttyX
	TimeoutMs int                 `yaml:"timeout_ms"`
	BaudRate  int                 `yaml:"baud_rate"`
	PortBits  int                 `yaml:"port_bits"`
	Boards    []ModbusBoardConfig `yaml:"boards"`
}

type ModbusBoardConfig struct {
	Model     string `yaml:"model"`
	UnitID    uint8  `yaml:"unit_id"`
	AI        int    `yaml:"ai"`
	DI        int    `yaml:"di"`
	DO        int    `yaml:"do"`
	DIO       int    `yaml:"dio"`
	AIAddress uint16 `yaml:"ai_address"`
	DIAddress uint16 `yaml:"di_address"`
	DOAddress uint16 `yaml:"do_address"`
}

// ---- LOOP ----

type LoopConfig struct {
	MaxRetries        int `yaml:"max_retries"` // 0 = unlimited
	RetryDelayMs      int `yaml:"retry_delay_ms"`
	CycleDelayMs      int `yaml:"cycle_delay_ms"`
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms"`
}

// ---- BOARD ----

type BoardConfig struct {
	ID      int           `yaml:"id"`
	Enabled *bool         `yaml:"enabled"` // nil = true
	Analog  AnalogConfig  `yaml:"analog"`
	Digital DigitalConfig `yaml:"digital"`

	// Status mirror slot (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	Name       string  `yaml:"name"`
}

// IsEnabled reports whether the board takes part in acquisition.
func (b BoardConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

type AnalogConfig struct {
	SamplingRate      float32         `yaml:"sampling_rate"`
	SamplesPerChannel uint32          `yaml:"samples_per_channel"`
	Parallel          *bool           `yaml:"parallel"`
	HighGain          bool            `yaml:"high_gain"`
	Channels          []ChannelConfig `yaml:"channels"`
}

type ChannelConfig struct {
	Name   string    `yaml:"name"`
	Index  uint16    `yaml:"index"`
	Range  string    `yaml:"range"` // e.g. bipolar_10v
	Window int       `yaml:"filter_window"`
	Coeffs []float64 `yaml:"coeffs"` // c0 + c1*x + ...
	Zero   float32   `yaml:"zero"`
}

type DigitalConfig struct {
	Inputs  []DigitalInputConfig  `yaml:"inputs"`
	Outputs []DigitalOutputConfig `yaml:"outputs"`
}

type DigitalInputConfig struct {
	Name   string `yaml:"name"`
	Port   uint16 `yaml:"port"`
	Bit    uint16 `yaml:"bit"`
	Invert bool   `yaml:"invert"`
}

type DigitalOutputConfig struct {
	Name    string `yaml:"name"`
	Port    uint16 `yaml:"port"`
	Bit     uint16 `yaml:"bit"`
	Initial *bool  `yaml:"initial"` // queued once at startup
}

// ---- OUTER SURFACES ----

type MQTTConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Broker      string  `yaml:"broker"`
	ClientID    string  `yaml:"client_id"`
	Username    string  `yaml:"username"`
	Password    string  `yaml:"password"`
	TopicPrefix string  `yaml:"topic_prefix"`
	QoS         byte    `yaml:"qos"`
	Retain      bool    `yaml:"retain"`
	FrameRate   float64 `yaml:"frame_rate"` // frames per second per board
	TimeoutMs   int     `yaml:"timeout_ms"`
}

type MetricsConfig struct {
	Listen   string `yaml:"listen"`
	Disabled bool   `yaml:"disabled"`
}

type StatusMirrorConfig struct {
	Endpoint   string `yaml:"endpoint"` // empty = disabled
	UnitID     uint8  `yaml:"unit_id"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	IntervalMs int    `yaml:"interval_ms"`
}

type CacheConfig struct {
	TTLMs int `yaml:"ttl_ms"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads, validates and normalizes a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML strictly, then validates and normalizes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.New(fmt.Errorf("config: decode: %w", err)).
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.New(fmt.Errorf("config: %w", err)).
			Component("config").
			Category(errors.CategoryValidation).
			Build()
	}
	Normalize(&cfg)
	return &cfg, nil
}
