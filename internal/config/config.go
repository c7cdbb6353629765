// Package config loads the YAML configuration for the ENIP session/CPF
// adapter: device identity, listen addresses, session/connection limits,
// tick cadence, CPF strictness, and the CIP access policy evaluated ahead
// of the object registry.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mtbrandt/enipcore/internal/dispatch"
	"github.com/mtbrandt/enipcore/internal/errors"
)

// Identity is the device identity reported by ListIdentity.
type Identity struct {
	VendorID      uint16 `yaml:"vendor_id"`
	DeviceType    uint16 `yaml:"device_type"`
	ProductCode   uint16 `yaml:"product_code"`
	RevisionMajor uint8  `yaml:"revision_major"`
	RevisionMinor uint8  `yaml:"revision_minor"`
	SerialNumber  uint32 `yaml:"serial_number"`
	ProductName   string `yaml:"product_name"`
}

// Listen carries the TCP/UDP listen addresses the platform adapter binds.
type Listen struct {
	IP      string `yaml:"ip"`
	TCPPort uint16 `yaml:"tcp_port"`
	UDPPort uint16 `yaml:"udp_port"`
}

// Limits bounds the session table, the delayed-reply queue, and the tick
// cadence driving both it and the connection watchdog sweep.
type Limits struct {
	SessionCapacity    int `yaml:"session_capacity"`
	DelayQueueCapacity int `yaml:"delay_queue_capacity"`
	TickIntervalMS     int `yaml:"tick_interval_ms"`
}

// CPF controls the Common Packet Format parser's tolerance for deviations
// from the canonical two-item shape.
type CPF struct {
	Strict bool `yaml:"strict"`
}

// PolicyRule is one allow/deny rule in the CIP access policy, matched by
// service/class/instance/attribute. A nil pointer field means "any".
type PolicyRule struct {
	Service   *uint8  `yaml:"service,omitempty"`
	Class     *uint16 `yaml:"class,omitempty"`
	Instance  *uint16 `yaml:"instance,omitempty"`
	Attribute *uint16 `yaml:"attribute,omitempty"`
	Action    string  `yaml:"action"` // "allow" or "deny"
	Status    uint8   `yaml:"status,omitempty"`
}

// Policy is the ordered CIP access policy list plus the default action for
// a request no rule matches.
type Policy struct {
	Rules   []PolicyRule `yaml:"rules"`
	Default string       `yaml:"default"` // "allow" or "deny"
}

// Support toggles individual ENIP commands, matching spec.md §4.6's
// EXPANSION: a disabled command is treated as unrecognized for dispatch
// purposes. Omitted fields default to enabled.
type Support struct {
	NOP               *bool `yaml:"nop,omitempty"`
	ListServices      *bool `yaml:"list_services,omitempty"`
	ListIdentity      *bool `yaml:"list_identity,omitempty"`
	ListInterfaces    *bool `yaml:"list_interfaces,omitempty"`
	RegisterSession   *bool `yaml:"register_session,omitempty"`
	UnRegisterSession *bool `yaml:"unregister_session,omitempty"`
	SendRRData        *bool `yaml:"send_rr_data,omitempty"`
	SendUnitData      *bool `yaml:"send_unit_data,omitempty"`
}

// Logging mirrors the teacher's logging config shape: a level and an
// optional file sink alongside the always-on console output.
type Logging struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path,omitempty"`
	Color    bool   `yaml:"color"`
}

// Metrics controls the plaintext stats listener cmd/enipmon polls,
// mirroring the teacher's server metrics listener shape.
type Metrics struct {
	Enable   bool   `yaml:"enable"`
	ListenIP string `yaml:"listen_ip"`
	Port     uint16 `yaml:"port"`
}

// Multicast configures the optional Class 1 I/O multicast group the UDP
// socket joins, mirroring the teacher's server multicast fields.
type Multicast struct {
	Group     string `yaml:"group,omitempty"`
	Interface string `yaml:"interface,omitempty"`
}

// Config is the top-level adapter configuration.
type Config struct {
	Identity  Identity  `yaml:"identity"`
	Listen    Listen    `yaml:"listen"`
	Limits    Limits    `yaml:"limits"`
	CPF       CPF       `yaml:"cpf"`
	Policy    Policy    `yaml:"policy"`
	Support   Support   `yaml:"support"`
	Logging   Logging   `yaml:"logging"`
	Metrics   Metrics   `yaml:"metrics"`
	Multicast Multicast `yaml:"multicast"`
}

// Default canonical values, per spec.md §6's defaults.
const (
	DefaultTCPPort            = 0xAF12
	DefaultUDPPort            = 0xAF12
	DefaultSessionCapacity    = 20
	DefaultDelayQueueCapacity = 2
	DefaultTickIntervalMS     = 10
)

// Default returns a Config with every field at its canonical default.
func Default() Config {
	return Config{
		Identity: Identity{ProductName: "enipcore adapter", RevisionMajor: 1},
		Listen:   Listen{IP: "0.0.0.0", TCPPort: DefaultTCPPort, UDPPort: DefaultUDPPort},
		Limits: Limits{
			SessionCapacity:    DefaultSessionCapacity,
			DelayQueueCapacity: DefaultDelayQueueCapacity,
			TickIntervalMS:     DefaultTickIntervalMS,
		},
		Policy:  Policy{Default: "allow"},
		Logging: Logging{Level: "info"},
		Metrics: Metrics{Enable: false, ListenIP: "127.0.0.1", Port: 8787},
	}
}

// Load reads and parses a YAML configuration file at path, applying
// defaults to any field the file leaves unset. If the file is missing and
// autoCreate is true, a default configuration is written there first.
func Load(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if !autoCreate {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		if err := WriteDefault(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("read created config file: %w", err), path)
		}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes a canonical default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports whether cfg's values are internally consistent.
func (c *Config) Validate() error {
	if c.Limits.SessionCapacity <= 0 {
		return fmt.Errorf("config: limits.session_capacity must be positive")
	}
	if c.Limits.DelayQueueCapacity <= 0 {
		return fmt.Errorf("config: limits.delay_queue_capacity must be positive")
	}
	if c.Limits.TickIntervalMS <= 0 {
		return fmt.Errorf("config: limits.tick_interval_ms must be positive")
	}
	for i, rule := range c.Policy.Rules {
		if rule.Action != "allow" && rule.Action != "deny" {
			return fmt.Errorf("config: policy.rules[%d].action must be \"allow\" or \"deny\"", i)
		}
	}
	if c.Policy.Default != "" && c.Policy.Default != "allow" && c.Policy.Default != "deny" {
		return fmt.Errorf("config: policy.default must be \"allow\" or \"deny\"")
	}
	return nil
}

func enabledOr(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}

// ToDispatchConfig renders s as a dispatch.SupportConfig, defaulting any
// unset command to enabled.
func (s Support) ToDispatchConfig() dispatch.SupportConfig {
	return dispatch.SupportConfig{
		NOP:               enabledOr(s.NOP, true),
		ListServices:      enabledOr(s.ListServices, true),
		ListIdentity:      enabledOr(s.ListIdentity, true),
		ListInterfaces:    enabledOr(s.ListInterfaces, true),
		RegisterSession:   enabledOr(s.RegisterSession, true),
		UnRegisterSession: enabledOr(s.UnRegisterSession, true),
		SendRRData:        enabledOr(s.SendRRData, true),
		SendUnitData:      enabledOr(s.SendUnitData, true),
	}
}

// ToIdentityInfo renders i as a dispatch.IdentityInfo.
func (i Identity) ToIdentityInfo() dispatch.IdentityInfo {
	return dispatch.IdentityInfo{
		VendorID:      i.VendorID,
		DeviceType:    i.DeviceType,
		ProductCode:   i.ProductCode,
		RevisionMajor: i.RevisionMajor,
		RevisionMinor: i.RevisionMinor,
		SerialNumber:  i.SerialNumber,
		ProductName:   i.ProductName,
	}
}
