package owasm

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ODIN-PROTOCOL/owasm-go/cache"
	"github.com/ODIN-PROTOCOL/owasm-go/internal/wasmtest"
)

// newRunnerFixture builds a Store and a Cache the way cmd/owasmrun wires
// them.
func newRunnerFixture(t *testing.T) (*Store, *cache.Cache) {
	t.Helper()
	ctx := context.Background()
	store, err := NewStore(ctx, DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close(ctx) })

	instanceCache, err := cache.New(DefaultConfig().CacheCapacity, zap.NewNop())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { instanceCache.Close(ctx) })

	return store, instanceCache
}

// declareImport declares one "env" import with the given signature and
// returns its index in the function index space.
func declareImport(b *wasmtest.Builder, name string, params, results []wasmtest.ValType) uint32 {
	typeIdx := b.Type(params, results)
	return b.ImportFunc("env", name, typeIdx)
}

func TestRunHappyPathReadCalldataSetReturnData(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)

	b := wasmtest.New()
	readCalldata := declareImport(b, "read_calldata", []wasmtest.ValType{wasmtest.I64}, []wasmtest.ValType{wasmtest.I64})
	setReturnData := declareImport(b, "set_return_data", []wasmtest.ValType{wasmtest.I64, wasmtest.I64}, nil)

	voidType := b.Type(nil, nil)
	var body []byte
	body = append(body, wasmtest.I64Const(0)...) // ptr for set_return_data
	body = append(body, wasmtest.I64Const(0)...) // ptr for read_calldata
	body = append(body, wasmtest.Call(readCalldata)...)
	body = append(body, wasmtest.Call(setReturnData)...)
	executeIdx := b.Func(voidType, body)

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("execute", executeIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "happy-path", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mock := newMockEnv()
	gasUsed, err := Run(ctx, instanceCache, store, artifact, 2_500_000_000_000, false, mock)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gasUsed == 0 {
		t.Errorf("expected some gas to have been used")
	}
	if string(mock.returnData) != string(mock.calldata) {
		t.Fatalf("got returnData=%v, want %v", mock.returnData, mock.calldata)
	}
}

func TestRunSpanTooSmallError(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)

	b := wasmtest.New()
	setReturnData := declareImport(b, "set_return_data", []wasmtest.ValType{wasmtest.I64, wasmtest.I64}, nil)

	voidType := b.Type(nil, nil)
	var body []byte
	body = append(body, wasmtest.I64Const(0)...)
	body = append(body, wasmtest.I64Const(301)...) // exceeds span size of 300
	body = append(body, wasmtest.Call(setReturnData)...)
	executeIdx := b.Func(voidType, body)

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("execute", executeIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "span-too-small", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = Run(ctx, instanceCache, store, artifact, 2_500_000_000_000, false, newMockEnv())
	kind, ok := ErrorKind(err)
	if !ok || kind != KindSpanTooSmall {
		t.Fatalf("got err=%v kind=%v, want KindSpanTooSmall", err, kind)
	}
}

func TestRunMemoryOutOfBoundError(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)

	b := wasmtest.New()
	readCalldata := declareImport(b, "read_calldata", []wasmtest.ValType{wasmtest.I64}, []wasmtest.ValType{wasmtest.I64})

	voidType := b.Type(nil, nil)
	var body []byte
	body = append(body, wasmtest.I64Const(65536)...) // exactly one page's byte size: out of bound
	body = append(body, wasmtest.Call(readCalldata)...)
	body = append(body, wasmtest.Drop...)
	executeIdx := b.Func(voidType, body)

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("execute", executeIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "mem-out-of-bound", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = Run(ctx, instanceCache, store, artifact, 2_500_000_000_000, false, newMockEnv())
	kind, ok := ErrorKind(err)
	if !ok || kind != KindMemoryOutOfBound {
		t.Fatalf("got err=%v kind=%v, want KindMemoryOutOfBound", err, kind)
	}
}

func TestRunOutOfGasOnInfiniteLoop(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)
	// Pin the context-deadline backstop to 1ns per gas unit, so the
	// 1000-gas limit below ends the loop after about a microsecond.
	store.config.GasSchedule.NanosPerGasUnit = 1

	b := wasmtest.New()
	voidType := b.Type(nil, nil)
	executeIdx := b.Func(voidType, wasmtest.InfiniteLoop())

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("execute", executeIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "infinite-loop", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = Run(ctx, instanceCache, store, artifact, 1000, false, newMockEnv())
	if !IsOutOfGas(err) {
		t.Fatalf("got %v, want an OutOfGas error", err)
	}
}

func TestRunErrorOnMissingExecute(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)

	b := wasmtest.New()
	voidType := b.Type(nil, nil)
	prepareIdx := b.Func(voidType, []byte{})

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("prepare", prepareIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "no-execute", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = Run(ctx, instanceCache, store, artifact, 2_500_000_000_000, false, newMockEnv())
	kind, ok := ErrorKind(err)
	if !ok || kind != KindRun {
		t.Fatalf("got err=%v kind=%v, want KindRun", err, kind)
	}
}

func TestRunAskExternalDataOrdering(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)

	b := wasmtest.New()
	askExternalData := declareImport(b, "ask_external_data",
		[]wasmtest.ValType{wasmtest.I64, wasmtest.I64, wasmtest.I64, wasmtest.I64}, nil)

	voidType := b.Type(nil, nil)
	var body []byte
	// First ask: eid=1, did=10, ptr=0, len=0.
	body = append(body, wasmtest.I64Const(1)...)
	body = append(body, wasmtest.I64Const(10)...)
	body = append(body, wasmtest.I64Const(0)...)
	body = append(body, wasmtest.I64Const(0)...)
	body = append(body, wasmtest.Call(askExternalData)...)
	// Second ask: eid=2, did=20, ptr=0, len=0.
	body = append(body, wasmtest.I64Const(2)...)
	body = append(body, wasmtest.I64Const(20)...)
	body = append(body, wasmtest.I64Const(0)...)
	body = append(body, wasmtest.I64Const(0)...)
	body = append(body, wasmtest.Call(askExternalData)...)
	prepareIdx := b.Func(voidType, body)

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("prepare", prepareIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "ask-ordering", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mock := newMockEnv()
	mock.isPrepare = true
	_, err = Run(ctx, instanceCache, store, artifact, 2_500_000_000_000, true, mock)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mock.asked) != 2 {
		t.Fatalf("got %d asks, want 2", len(mock.asked))
	}
	if mock.asked[0].EID != 1 || mock.asked[0].DID != 10 {
		t.Fatalf("got first ask=%+v, want eid=1 did=10", mock.asked[0])
	}
	if mock.asked[1].EID != 2 || mock.asked[1].DID != 20 {
		t.Fatalf("got second ask=%+v, want eid=2 did=20", mock.asked[1])
	}
}

func TestRunGasUsedAccumulatesAcrossGasImportCalls(t *testing.T) {
	store, instanceCache := newRunnerFixture(t)

	b := wasmtest.New()
	gasType := b.Type([]wasmtest.ValType{wasmtest.I32}, nil)
	gasIdx := b.ImportFunc("env", "gas", gasType)

	voidType := b.Type(nil, nil)
	var body []byte
	body = append(body, wasmtest.I32Const(0)...)
	body = append(body, wasmtest.Call(gasIdx)...)
	body = append(body, wasmtest.I32Const(0)...)
	body = append(body, wasmtest.Call(gasIdx)...)
	executeIdx := b.Func(voidType, body)

	b.Memory(1, 0, false)
	b.ExportMemory("memory")
	b.ExportFunc("execute", executeIdx)

	ctx := context.Background()
	artifact, err := store.Compile(ctx, "gas-accounting", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	gasUsed, err := Run(ctx, instanceCache, store, artifact, 2_500_000_000_000, false, newMockEnv())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := 2 * store.config.GasSchedule.PerCallQuantum; gasUsed != want {
		t.Fatalf("got gasUsed=%d, want %d (two gas calls)", gasUsed, want)
	}
}

func TestClassifyTrapPrefersOutOfGas(t *testing.T) {
	store, _ := newRunnerFixture(t)
	environment := newEnvironment(newMockEnv(), 1, store.config.GasSchedule)
	// Exhaust gas directly, independent of any particular guest trap cause.
	_ = environment.decreaseGasLeft(2)

	err := classifyTrap(context.Background(), RunError("unrelated trap", nil), environment)
	if !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("got %v, want OutOfGas to take priority", err)
	}
}
