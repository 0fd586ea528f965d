package integration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/leveldb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
)

// StoreConfig selects the ledger store and its resource limits.
type StoreConfig struct {
	Name string `yaml:"name"`
	// Persistent stores live in a LevelDB under the data dir, the others in
	// memory and are lost on exit.
	Persistent bool `yaml:"persistent"`
	CacheMB    int  `yaml:"cacheMB"`
	Handles    int  `yaml:"handles"`
}

// MemoryPreset keeps the ledger in memory. Used by tests and throwaway devnets.
func MemoryPreset() StoreConfig {
	return StoreConfig{
		Name: "memory",
	}
}

// LitePreset is a small LevelDB store for development machines.
func LitePreset() StoreConfig {
	return StoreConfig{
		Name:       "lite",
		Persistent: true,
		CacheMB:    64,
		Handles:    128,
	}
}

// FullPreset is the production store.
func FullPreset() StoreConfig {
	return StoreConfig{
		Name:       "full",
		Persistent: true,
		CacheMB:    1024,
		Handles:    1024,
	}
}

// DefaultPreset is the store used when none is configured.
func DefaultPreset() StoreConfig {
	return FullPreset()
}

// GetPresetByName looks up a preset by its identifier, so that --db.preset
// can select it.
func GetPresetByName(name string) (StoreConfig, error) {
	switch name {
	case "memory":
		return MemoryPreset(), nil
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	default:
		return StoreConfig{}, fmt.Errorf("unknown preset: %q (valid: memory, lite, full)", name)
	}
}

// ApplyPreset overrides the non-zero fields of target with the preset's.
func ApplyPreset(target *StoreConfig, preset StoreConfig) {
	if preset.CacheMB > 0 {
		target.CacheMB = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.Handles = preset.Handles
	}
	if preset.Name != "" {
		target.Name = preset.Name
	}
	target.Persistent = preset.Persistent
}

// OpenStore opens the store described by cfg. Persistent stores are created
// under datadir/ledger.
func OpenStore(cfg StoreConfig, datadir string) (kvdb.Store, error) {
	if !cfg.Persistent {
		return memorydb.New(), nil
	}
	if datadir == "" {
		return nil, fmt.Errorf("store preset %q needs a data directory", cfg.Name)
	}
	path := filepath.Join(datadir, "ledger")
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}
	db, err := leveldb.New(path, cfg.CacheMB, cfg.Handles, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store %s: %w", path, err)
	}
	return db, nil
}
