package owasm

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesSentinelByKind(t *testing.T) {
	err := CompileError("bad module", errors.New("boom"))
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("expected errors.Is(err, ErrCompile) to be true")
	}
	if errors.Is(err, ErrRun) {
		t.Fatalf("expected errors.Is(err, ErrRun) to be false")
	}
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := RunError("guest trapped", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestOutOfGasSentinel(t *testing.T) {
	err := OutOfGasError()
	if !IsOutOfGas(err) {
		t.Fatalf("expected IsOutOfGas(OutOfGasError()) to be true")
	}
	if IsOutOfGas(RunError("x", nil)) {
		t.Fatalf("expected IsOutOfGas(RunError) to be false")
	}
}

func TestErrorKind(t *testing.T) {
	kind, ok := ErrorKind(SpanTooSmallError())
	if !ok || kind != KindSpanTooSmall {
		t.Fatalf("got kind=%v ok=%v, want KindSpanTooSmall", kind, ok)
	}

	if _, ok := ErrorKind(errors.New("not an owasm error")); ok {
		t.Fatalf("expected ErrorKind to report false for a plain error")
	}
}
