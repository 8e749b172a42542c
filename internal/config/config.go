package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultPayload is what the TCP sender writes every interval.
const DefaultPayload = "hello\n"

// Config holds the measurement settings read from the environment.
type Config struct {
	// Port is the TCP destination and UDP bind port.
	Port uint16 `env:"SOCKSTAMP_PORT" envDefault:"10000"`
	// TCPWindow, UDPWindow and DriftWindow are the report windows per binary.
	TCPWindow   int `env:"SOCKSTAMP_TCP_WINDOW" envDefault:"60"`
	UDPWindow   int `env:"SOCKSTAMP_UDP_WINDOW" envDefault:"600"`
	DriftWindow int `env:"SOCKSTAMP_DRIFT_WINDOW" envDefault:"300"`
	// SendInterval paces the TCP sender and the drift timer period.
	SendInterval time.Duration `env:"SOCKSTAMP_SEND_INTERVAL" envDefault:"1s"`
	// DriftStartDelay is how far past the current second the drift timer first fires.
	DriftStartDelay time.Duration `env:"SOCKSTAMP_DRIFT_START_DELAY" envDefault:"2s"`
	// Payload is sent verbatim, no escape processing.
	Payload string `env:"SOCKSTAMP_PAYLOAD"`
	// BPFCounter attaches the kernel-side packet counter to the socket.
	BPFCounter bool `env:"SOCKSTAMP_BPF_COUNTER" envDefault:"false"`
	// SpanAttributes is a ';'-separated list of NAME=EXPR pairs.
	SpanAttributes string `env:"SOCKSTAMP_SPAN_ATTRIBUTES"`
	// TraceID and ParentID are expressions evaluated once at startup.
	TraceID  string `env:"SOCKSTAMP_TRACE_ID"`
	ParentID string `env:"SOCKSTAMP_PARENT_ID"`
	LogLevel string `env:"SOCKSTAMP_LOG_LEVEL" envDefault:"info"`

	// CustomAttributes is SpanAttributes, parsed.
	CustomAttributes []CustomAttribute `env:"-"`
}

// CustomAttribute represents a custom attribute definition: NAME=EXPR.
type CustomAttribute struct {
	Name       string
	Expression string
}

// Parse reads the configuration from the environment and validates it.
func Parse() (*Config, error) {
	cfg := Config{Payload: DefaultPayload}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	attrs, err := ParseAttributeString(cfg.SpanAttributes)
	if err != nil {
		return nil, fmt.Errorf("SOCKSTAMP_SPAN_ATTRIBUTES: %w", err)
	}
	cfg.CustomAttributes = attrs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the drivers cannot run with.
func (c *Config) Validate() error {
	var errs []error
	for name, w := range map[string]int{
		"SOCKSTAMP_TCP_WINDOW":   c.TCPWindow,
		"SOCKSTAMP_UDP_WINDOW":   c.UDPWindow,
		"SOCKSTAMP_DRIFT_WINDOW": c.DriftWindow,
	} {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, w))
		}
	}
	if c.SendInterval <= 0 {
		errs = append(errs, fmt.Errorf("SOCKSTAMP_SEND_INTERVAL must be positive, got %s", c.SendInterval))
	}
	if c.DriftStartDelay < 0 {
		errs = append(errs, fmt.Errorf("SOCKSTAMP_DRIFT_START_DELAY must not be negative, got %s", c.DriftStartDelay))
	}
	if c.Payload == "" {
		errs = append(errs, errors.New("SOCKSTAMP_PAYLOAD must not be empty"))
	}
	return errors.Join(errs...)
}

// ParseAttributeString parses "name1=expr1;name2=expr2". Empty sections are
// skipped. Only the first '=' separates name from expression.
func ParseAttributeString(s string) ([]CustomAttribute, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var attrs []CustomAttribute
	for _, section := range strings.Split(s, ";") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		name, expression, ok := strings.Cut(section, "=")
		if !ok {
			return nil, fmt.Errorf("invalid attribute format %q, expected NAME=EXPR", section)
		}
		name = strings.TrimSpace(name)
		expression = strings.TrimSpace(expression)
		if name == "" {
			return nil, fmt.Errorf("attribute name cannot be empty in %q", section)
		}
		if expression == "" {
			return nil, fmt.Errorf("attribute expression cannot be empty for %q", name)
		}

		attrs = append(attrs, CustomAttribute{Name: name, Expression: expression})
	}
	return attrs, nil
}
