package owasm

import (
	"errors"
	"time"
)

// GasSchedule pins the cost constants the engine must apply identically on
// every validator. Changing any field changes what "the same gas_limit"
// means for a given script, so hosts must agree on one GasSchedule across
// the network before exchanging gas_used values.
type GasSchedule struct {
	// PerCallQuantum is the fixed amount of gas the "gas" import debits per
	// invocation, independent of its advisory argument. The reference
	// implementation uses 12,500,000; this must stay identical across
	// validators to preserve determinism.
	PerCallQuantum uint64 `yaml:"per_call_quantum"`

	// NanosPerGasUnit derives the context-deadline backstop Run installs for
	// compute-only loops that never cross the host boundary (see DESIGN.md,
	// "No per-opcode metering middleware"). It does not affect gas_used.
	NanosPerGasUnit time.Duration `yaml:"nanos_per_gas_unit"`
}

// DefaultGasSchedule returns the reference gas schedule.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		PerCallQuantum:  12_500_000,
		NanosPerGasUnit: 1,
	}
}

// Config configures a Store and the Cache it drives.
type Config struct {
	// CacheCapacity is the maximum number of warm instances the Cache holds
	// in total (one per artifact identity) before evicting the
	// least-recently-used entry.
	CacheCapacity int `yaml:"cache_capacity"`

	// GasSchedule is the cost model applied by the import table and the
	// context-deadline backstop.
	GasSchedule GasSchedule `yaml:"gas_schedule"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CacheCapacity: 100,
		GasSchedule:   DefaultGasSchedule(),
	}
}

// ApplyDefaults fills in zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.CacheCapacity == 0 {
		c.CacheCapacity = defaults.CacheCapacity
	}
	if c.GasSchedule.PerCallQuantum == 0 {
		c.GasSchedule.PerCallQuantum = defaults.GasSchedule.PerCallQuantum
	}
	if c.GasSchedule.NanosPerGasUnit == 0 {
		c.GasSchedule.NanosPerGasUnit = defaults.GasSchedule.NanosPerGasUnit
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() []error {
	var errs []error
	if c.CacheCapacity <= 0 {
		errs = append(errs, errors.New("config: CacheCapacity must be positive"))
	}
	if c.GasSchedule.PerCallQuantum == 0 {
		errs = append(errs, errors.New("config: GasSchedule.PerCallQuantum must be positive"))
	}
	return errs
}

// WithCacheCapacity returns a copy of c with CacheCapacity set.
func (c *Config) WithCacheCapacity(n int) *Config {
	cp := *c
	cp.CacheCapacity = n
	return &cp
}

// WithGasSchedule returns a copy of c with GasSchedule set.
func (c *Config) WithGasSchedule(s GasSchedule) *Config {
	cp := *c
	cp.GasSchedule = s
	return &cp
}
