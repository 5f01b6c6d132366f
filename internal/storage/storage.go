// Package storage selects the run store backing the request layer.
package storage

import (
	"fmt"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/storage/memory"
	"github.com/tjfontaine/audiencesim/internal/storage/sqlite"
)

// Store type names accepted in storage.type.
const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
)

// New creates the run store described by cfg.
func New(cfg config.StorageConfig) (ports.RunStore, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return memory.New(), nil
	case TypeSQLite:
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
