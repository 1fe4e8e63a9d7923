// Package axconfig aggregates the tunables for every subsystem into one
// yaml-backed configuration document, following the teacher's
// config-file-plus-command-line-overrides pattern from direwolf.conf.
package axconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minorsecond/axterm-core/linkquality"
	"github.com/minorsecond/axterm-core/session"
)

// DecayConfig carries the freshness TTLs from spec §4.7 in a yaml-shaped
// form (durations expressed in seconds/hours since yaml.v3 has no native
// time.Duration support).
type DecayConfig struct {
	NeighborTTLSeconds   int64 `yaml:"neighborTtlSeconds"`
	RouteTTLSeconds      int64 `yaml:"routeTtlSeconds"`
	LinkStatTTLSeconds   int64 `yaml:"linkStatTtlSeconds"`
	CapabilityTTLSeconds int64 `yaml:"capabilityTtlSeconds"`
	GlobalStaleTTLHours  int64 `yaml:"globalStaleTtlHours"`
	HideExpiredRoutes    bool  `yaml:"hideExpiredRoutes"`
}

func (d DecayConfig) NeighborTTL() time.Duration { return time.Duration(d.NeighborTTLSeconds) * time.Second }
func (d DecayConfig) RouteTTL() time.Duration     { return time.Duration(d.RouteTTLSeconds) * time.Second }
func (d DecayConfig) LinkStatTTL() time.Duration {
	return time.Duration(d.LinkStatTTLSeconds) * time.Second
}
func (d DecayConfig) CapabilityTTL() time.Duration {
	return time.Duration(d.CapabilityTTLSeconds) * time.Second
}
func (d DecayConfig) GlobalStaleTTL() time.Duration {
	return time.Duration(d.GlobalStaleTTLHours) * time.Hour
}

// PersistenceConfig controls snapshot location, staleness, and retention.
type PersistenceConfig struct {
	SnapshotPath          string `yaml:"snapshotPath"`
	MaxSnapshotAgeSeconds int64  `yaml:"maxSnapshotAgeSeconds"`
	RetentionDays         int    `yaml:"retentionDays"`
}

func (p PersistenceConfig) MaxSnapshotAge() time.Duration {
	return time.Duration(p.MaxSnapshotAgeSeconds) * time.Second
}

// RoutingConfig selects the NET/ROM view presented to the user.
type RoutingConfig struct {
	Mode string `yaml:"mode"` // "classic", "inference", or "hybrid"
}

// Config is the complete, persistable configuration for one axtermd
// instance.
type Config struct {
	LocalCall   string             `yaml:"localCall"`
	Session     session.Config     `yaml:"session"`
	LinkQuality linkquality.Config `yaml:"linkQuality"`
	Decay       DecayConfig        `yaml:"decay"`
	Persistence PersistenceConfig  `yaml:"persistence"`
	Routing     RoutingConfig      `yaml:"routing"`
}

// DefaultConfig returns a Config seeded from every subsystem's own
// defaults, per spec §4.10.
func DefaultConfig() Config {
	return Config{
		LocalCall: "N0CALL",
		Session:   session.DefaultConfig(),
		LinkQuality: linkquality.DefaultConfig(),
		Decay: DecayConfig{
			NeighborTTLSeconds:   15 * 60,
			RouteTTLSeconds:      15 * 60,
			LinkStatTTLSeconds:   15 * 60,
			CapabilityTTLSeconds: 15 * 60,
			GlobalStaleTTLHours:  1,
		},
		Persistence: PersistenceConfig{
			SnapshotPath:          "axterm-snapshot.yaml",
			MaxSnapshotAgeSeconds: 3600,
			RetentionDays:         7,
		},
		Routing: RoutingConfig{Mode: "hybrid"},
	}
}

// Load reads and unmarshals a Config from path. A missing file is not an
// error: it returns DefaultConfig() unchanged alongside ok=false so the
// caller can decide whether to write one out.
func Load(path string) (cfg Config, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), false, nil
		}
		return Config{}, false, err
	}
	cfg = DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Save marshals cfg to path as yaml.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Hash returns a stable hex digest of cfg's persistable shape, used to
// invalidate a snapshot written under a materially different
// configuration (spec §4.8's config-hash mismatch rule).
func (c Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
