package owasm

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Store is a factory producing a pre-configured compiler+engine bundle.
// One Store holds one wazero.Runtime; all artifacts compiled through it
// share the same engine configuration, so they are only safe to mix with
// each other, never with artifacts compiled by a differently configured
// Store.
type Store struct {
	runtime wazero.Runtime
	logger  *zap.Logger
	config  *Config

	// envInstance is the single "env" host module instance every guest
	// module's imports resolve against. It is built once, here, rather
	// than once per Run call: buildHostModule registers free functions
	// that pull the active *Environment out of the invocation's ctx (see
	// vmlogic.go, imports.go), so one host module instance safely serves
	// every invocation for the Store's lifetime.
	envInstance api.Module
}

// NewStore builds a Store backed by a fresh wazero runtime. Context
// cancellation aborts any in-flight guest call via
// WithCloseOnContextDone(true) — the same runtime configuration line the
// teacher engine uses, and the mechanism Run relies on as a backstop for
// compute-only infinite loops (see DESIGN.md).
//
// Unlike a general-purpose WASM function host, NewStore does not
// instantiate WASI: oracle scripts speak only the narrow "env" host-call
// ABI in imports.go, never wasi_snapshot_preview1.
func NewStore(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	runtimeConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	envInstance, err := buildHostModule(runtime).Instantiate(ctx)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, InstantiationError("failed to instantiate host import module", err)
	}

	return &Store{runtime: runtime, logger: logger, config: cfg, envInstance: envInstance}, nil
}

// Close releases the underlying wazero runtime and every module compiled
// through it.
func (s *Store) Close(ctx context.Context) error {
	_ = s.envInstance.Close(ctx)
	return s.runtime.Close(ctx)
}
