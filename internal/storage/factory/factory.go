// Package factory creates storage backends based on configuration.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/storage"
)

// Backend names accepted in configuration.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// BackendFactory creates a storage backend from the loaded configuration.
type BackendFactory func(ctx context.Context, cfg *config.Config) (storage.Store, error)

var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory. Backend files call
// this from init.
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// New creates the storage backend named by cfg.DBType. An empty type
// selects sqlite.
func New(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	backend := cfg.DBType
	if backend == "" {
		backend = BackendSQLite
	}
	if factory, ok := backendRegistry[backend]; ok {
		return factory(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)",
		backend, strings.Join(Registered(), ", "))
}

// Registered returns the registered backend names, sorted.
func Registered() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
