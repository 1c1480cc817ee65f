// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultSamplingRate      = 1000
	DefaultSamplesPerChannel = 256
	DefaultRetryDelayMs      = 2000
	DefaultCycleDelayMs      = 5
	DefaultShutdownTimeoutMs = 3000
	DefaultMQTTFrameRate     = 2
	DefaultMQTTTimeoutMs     = 5000
	DefaultMQTTTopicPrefix   = "daqd"
	DefaultMetricsListen     = ":9102"
	DefaultModbusTimeoutMs   = 1000
	DefaultMirrorIntervalMs  = 1000
	DefaultCacheTTLMs        = 10000
	DefaultLogLevel          = "info"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Driver.Kind == "" {
		cfg.Driver.Kind = DriverSim
	}
	if cfg.Driver.Modbus.TimeoutMs == 0 {
		cfg.Driver.Modbus.TimeoutMs = DefaultModbusTimeoutMs
	}

	l := &cfg.Loop
	if l.RetryDelayMs == 0 {
		l.RetryDelayMs = DefaultRetryDelayMs
	}
	if l.CycleDelayMs == 0 {
		l.CycleDelayMs = DefaultCycleDelayMs
	}
	if l.ShutdownTimeoutMs == 0 {
		l.ShutdownTimeoutMs = DefaultShutdownTimeoutMs
	}

	for bi := range cfg.Boards {
		b := &cfg.Boards[bi]

		a := &b.Analog
		if a.SamplingRate == 0 {
			a.SamplingRate = DefaultSamplingRate
		}
		if a.SamplesPerChannel == 0 {
			a.SamplesPerChannel = DefaultSamplesPerChannel
		}
		if a.Parallel == nil {
			on := true
			a.Parallel = &on
		}

		// ASCII already validated; status block holds 16 characters
		if len(b.Name) > 16 {
			b.Name = b.Name[:16]
		}
	}

	m := &cfg.MQTT
	if m.TopicPrefix == "" {
		m.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if m.FrameRate == 0 {
		m.FrameRate = DefaultMQTTFrameRate
	}
	if m.TimeoutMs == 0 {
		m.TimeoutMs = DefaultMQTTTimeoutMs
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}

	if cfg.StatusMirror.IntervalMs == 0 {
		cfg.StatusMirror.IntervalMs = DefaultMirrorIntervalMs
	}
	if cfg.StatusMirror.TimeoutMs == 0 {
		cfg.StatusMirror.TimeoutMs = DefaultModbusTimeoutMs
	}

	if cfg.Cache.TTLMs == 0 {
		cfg.Cache.TTLMs = DefaultCacheTTLMs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

// Board returns the config of board id.
func (c *Config) Board(id int) (BoardConfig, bool) {
	for _, b := range c.Boards {
		if b.ID == id {
			return b, true
		}
	}
	return BoardConfig{}, false
}
