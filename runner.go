package owasm

import (
	"context"
	"errors"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/ODIN-PROTOCOL/owasm-go/cache"
)

// Run obtains (instantiating on first use, reusing thereafter) a guest
// instance of artifact from c, invokes "prepare" (if isPrepare) or
// "execute" against it bound to env, enforces gasLimit, and returns the gas
// actually used or a typed *Error.
func Run(ctx context.Context, c *cache.Cache, store *Store, artifact *CompiledArtifact, gasLimit uint64, isPrepare bool, env Env) (uint64, error) {
	environment := newEnvironment(env, gasLimit, store.config.GasSchedule)

	// The context deadline derived here is a documented backstop for
	// compute-only loops that never cross the gas-metered host boundary
	// (DESIGN.md, Open Question 3) — not part of the authoritative gas
	// accounting, which always comes from environment.gasUsed().
	runCtx := ctx
	if store.config.GasSchedule.NanosPerGasUnit > 0 {
		budget := time.Duration(gasLimit) * store.config.GasSchedule.NanosPerGasUnit
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	// Publish this invocation's Environment into the ctx passed to
	// entry.Call. The "env" host module (store.envInstance) was built once
	// against no Environment at all; every import call it receives during
	// this invocation resolves environment back out via
	// environmentFromContext (see imports.go, vmlogic.go).
	runCtx = withEnvironment(runCtx, environment)

	entryName := "execute"
	if isPrepare {
		entryName = "prepare"
	}

	var gasUsed uint64
	create := func(ctx context.Context, compiled wazero.CompiledModule) (api.Module, error) {
		instance, err := store.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(artifact.ID))
		if err != nil {
			return nil, InstantiationError("failed to instantiate module", err)
		}
		return instance, nil
	}

	runErr := c.Use(runCtx, artifact.ID, artifact.Compiled, create, func(instance api.Module) (bool, error) {
		entry := instance.ExportedFunction(entryName)
		if entry == nil {
			return true, RunError("module does not export \""+entryName+"\"", nil)
		}

		_, callErr := entry.Call(runCtx)
		gasUsed = environment.gasUsed()
		if callErr == nil {
			return false, nil
		}

		store.logger.Debug("guest trap", zap.String("entry", entryName), zap.Error(callErr))
		return true, classifyTrap(runCtx, callErr, environment)
	})

	return gasUsed, runErr
}

// classifyTrap maps a trap observed from entry.Call into the closed error
// taxonomy. OutOfGas always wins if the invocation is out of gas at trap
// time, even if another typed cause is also present.
func classifyTrap(ctx context.Context, callErr error, environment *Environment) error {
	if environment.outOfGasAtTrap() {
		return OutOfGasError()
	}

	var typed *Error
	if errors.As(callErr, &typed) {
		return typed
	}

	if ctx.Err() == context.DeadlineExceeded {
		// The context-deadline backstop fired: treat it exactly like gas
		// exhaustion, since from the guest's perspective this is the only
		// way execution is ever bounded (see DESIGN.md Open Question 3).
		return OutOfGasError()
	}

	return RunError("guest trapped", callErr)
}

// outOfGasAtTrap reports whether the VMLogic counter is over budget at the
// moment a trap is classified.
func (e *Environment) outOfGasAtTrap() bool {
	var out bool
	e.withVM(func(vm *VMLogic) { out = vm.outOfGas() })
	return out
}
