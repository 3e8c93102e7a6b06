package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sarchlab/cachesim/timing/latency"
)

// ErrInvalidConfig is returned when a cache configuration violates the
// geometry invariants. Simulation never starts with such a configuration.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// Replacement policy names accepted in Config.Policy.
const (
	PolicyLRU  = "lru"
	PolicyFIFO = "fifo"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// HitLatency in cycles, charged to every access
	HitLatency uint64 `json:"hit_latency"`
	// MissPenalty in cycles, charged on top of the hit latency for a miss
	MissPenalty uint64 `json:"miss_penalty"`
	// DirtyWritebackPenalty in cycles, charged when a dirty block is evicted
	DirtyWritebackPenalty uint64 `json:"dirty_writeback_penalty"`
	// Policy selects the replacement policy. Empty means LRU.
	Policy string `json:"policy,omitempty"`
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return DefaultL1DConfig()
}

// DefaultL1IConfig returns default configuration for L1 instruction cache.
// Based on Apple M2 specifications:
// - 192KB per performance core (6-way, 64B line)
func DefaultL1IConfig() Config {
	return Config{
		Size:                  192 * 1024, // 192KB
		Associativity:         6,          // 6-way
		BlockSize:             64,         // 64B cache line
		HitLatency:            1,
		MissPenalty:           12, // ~12 cycles to L2
		DirtyWritebackPenalty: 12,
		Policy:                PolicyLRU,
	}
}

// DefaultL1DConfig returns default configuration for L1 data cache.
// Based on Apple M2 specifications:
// - 128KB per performance core (8-way, 64B line)
func DefaultL1DConfig() Config {
	return Config{
		Size:                  128 * 1024, // 128KB
		Associativity:         8,          // 8-way
		BlockSize:             64,         // 64B cache line
		HitLatency:            1,
		MissPenalty:           12, // ~12 cycles to L2
		DirtyWritebackPenalty: 12,
		Policy:                PolicyLRU,
	}
}

// DefaultL2Config returns an L2 configuration for per-core L2 setups.
// The shared 24MB M2 L2 has a non power-of-two set count and cannot be
// modeled with bit-sliced indexing.
func DefaultL2Config() Config {
	return Config{
		Size:                  512 * 1024, // 512KB per core
		Associativity:         8,          // 8-way
		BlockSize:             128,        // 128B cache line
		HitLatency:            1,
		MissPenalty:           150, // ~150 cycles (unified memory)
		DirtyWritebackPenalty: 150,
		Policy:                PolicyLRU,
	}
}

var presets = map[string]func() Config{
	"l1d": DefaultL1DConfig,
	"l1i": DefaultL1IConfig,
	"l2":  DefaultL2Config,
}

// Preset returns the named default configuration.
func Preset(name string) (Config, error) {
	p, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown cache preset %q (known: %v)", name, PresetNames())
	}
	return p(), nil
}

// PresetNames lists the names accepted by Preset.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read cache config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse cache config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cache config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache config file: %w", err)
	}

	return nil
}

// Validate checks the geometry invariants. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	_, err := NewGeometry(c)
	if err != nil {
		return err
	}

	if c.HitLatency == 0 {
		return fmt.Errorf("%w: hit_latency must be > 0", ErrInvalidConfig)
	}
	if c.MissPenalty == 0 {
		return fmt.Errorf("%w: miss_penalty must be > 0", ErrInvalidConfig)
	}
	if c.DirtyWritebackPenalty == 0 {
		return fmt.Errorf("%w: dirty_writeback_penalty must be > 0", ErrInvalidConfig)
	}

	switch c.Policy {
	case "", PolicyLRU, PolicyFIFO:
	default:
		return fmt.Errorf("%w: unknown replacement policy %q", ErrInvalidConfig, c.Policy)
	}

	return nil
}

// CostModel returns the linear cycle model described by the configured
// latencies.
func (c Config) CostModel() latency.Linear {
	return latency.Linear{
		HitLatency:            c.HitLatency,
		MissPenalty:           c.MissPenalty,
		DirtyWritebackPenalty: c.DirtyWritebackPenalty,
	}
}

// String summarizes the geometry, e.g. "32KiB 8-way 64B lru".
func (c Config) String() string {
	policy := c.Policy
	if policy == "" {
		policy = PolicyLRU
	}

	size := fmt.Sprintf("%dB", c.Size)
	if c.Size >= 1024 && c.Size%1024 == 0 {
		size = fmt.Sprintf("%dKiB", c.Size/1024)
	}

	return fmt.Sprintf("%s %d-way %dB %s", size, c.Associativity, c.BlockSize, policy)
}
