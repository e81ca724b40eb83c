package owasm

import (
	"context"
	"sync"
)

// VMLogic is the per-invocation mutable bundle the import table operates
// against: the host-supplied Env, the immutable gas_limit, and the
// monotonically non-decreasing gas_used counter. Ported directly from
// original_source/packages/vm/src/vm.rs's VMLogic<E>.
type VMLogic struct {
	Env      Env
	GasLimit uint64
	GasUsed  uint64
}

// newVMLogic constructs a VMLogic with GasUsed starting at zero.
func newVMLogic(env Env, gasLimit uint64) *VMLogic {
	return &VMLogic{Env: env, GasLimit: gasLimit, GasUsed: 0}
}

// outOfGas reports whether gas_used has exceeded gas_limit.
func (v *VMLogic) outOfGas() bool {
	return v.GasUsed > v.GasLimit
}

// consumeGas adds gas to gas_used (saturating) and reports whether the
// invocation is now out of gas.
func (v *VMLogic) consumeGas(gas uint64) bool {
	sum := v.GasUsed + gas
	if sum < v.GasUsed { // overflow
		sum = ^uint64(0)
	}
	v.GasUsed = sum
	return v.outOfGas()
}

// Environment is the per-invocation handle host import functions operate
// against: a mutex-guarded VMLogic plus the gas schedule constants. Unlike
// the Rust Environment<E>, it is never captured by an import closure at
// build time — the host module is built once, against the runtime, with no
// Environment at all (see buildHostModule in imports.go). Run instead
// publishes the active Environment for one invocation into the
// context.Context it passes to entry.Call, and every host import resolves
// it back out via environmentFromContext. This is the same technique
// _examples/other_examples/ad9aa950_wapc-wapc-go__engines-wazero-wazero.go.go
// uses to thread its invokeContext through context.Value rather than
// closing over fixed state per invocation, adapted to wazero's current API
// where ctx is already the first reflected parameter of every bound host
// function. The guard around vm exists purely to satisfy wazero's
// requirement that host functions be safely callable concurrently; under
// the single-threaded guest execution model of spec §5, it is never
// contended.
type Environment struct {
	vmMu sync.Mutex
	vm   *VMLogic

	gasSchedule GasSchedule
}

// newEnvironment builds an Environment around env with the given gas limit.
func newEnvironment(env Env, gasLimit uint64, schedule GasSchedule) *Environment {
	return &Environment{vm: newVMLogic(env, gasLimit), gasSchedule: schedule}
}

// withVM runs fn with read access to the VMLogic.
func (e *Environment) withVM(fn func(vm *VMLogic)) {
	e.vmMu.Lock()
	defer e.vmMu.Unlock()
	fn(e.vm)
}

// withMutVM runs fn with exclusive access to the VMLogic and returns fn's result.
func withMutVM[R any](e *Environment, fn func(vm *VMLogic) (R, error)) (R, error) {
	e.vmMu.Lock()
	defer e.vmMu.Unlock()
	return fn(e.vm)
}

// decreaseGasLeft debits gasUsed by amount, reporting OutOfGasError if that
// would exceed gas_limit. Mirrors Environment::decrease_gas_left in vm.rs.
func (e *Environment) decreaseGasLeft(amount uint64) error {
	_, err := withMutVM(e, func(vm *VMLogic) (struct{}, error) {
		if vm.consumeGas(amount) {
			return struct{}{}, OutOfGasError()
		}
		return struct{}{}, nil
	})
	return err
}

// gasUsed returns the current gas_used counter.
func (e *Environment) gasUsed() uint64 {
	var used uint64
	e.withVM(func(vm *VMLogic) { used = vm.GasUsed })
	return used
}

// environmentContextKey is the context.Value key Run uses to publish the
// Environment backing one invocation into the ctx passed to entry.Call.
type environmentContextKey struct{}

// withEnvironment returns a copy of ctx carrying e as the active Environment
// for every host import invoked during that call.
func withEnvironment(ctx context.Context, e *Environment) context.Context {
	return context.WithValue(ctx, environmentContextKey{}, e)
}

// environmentFromContext recovers the Environment Run published into ctx.
// Returns nil if called outside a Run invocation (e.g. a host function
// invoked directly against a bare context in a test that doesn't need one).
func environmentFromContext(ctx context.Context) *Environment {
	e, _ := ctx.Value(environmentContextKey{}).(*Environment)
	return e
}
