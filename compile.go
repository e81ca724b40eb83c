package owasm

import (
	"context"

	"go.uber.org/zap"

	"github.com/ODIN-PROTOCOL/owasm-go/internal/wasmshape"
)

// Compile validates wasmBytes against the permitted feature subset and
// produces a CompiledArtifact identified by id. The caller is responsible
// for presenting a stable id for identical bytes (content-addressing is the
// caller's concern, not the engine's — see DESIGN.md, artifact.go).
//
// Validation, in order: reject modules declaring more than one memory
// (import + local combined); hand the bytes to wazero for full compilation;
// require exactly one exported memory named "memory".
func (s *Store) Compile(ctx context.Context, id string, wasmBytes []byte) (*CompiledArtifact, error) {
	memCount, err := wasmshape.MemoryCount(wasmBytes)
	if err != nil {
		return nil, CompileError("malformed module", err)
	}
	if memCount > 1 {
		return nil, CompileError("module declares more than one memory", nil)
	}

	compiled, err := s.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, CompileError("wazero compilation failed", err)
	}

	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		_ = compiled.Close(ctx)
		return nil, CompileError("module exports no memory named \"memory\"", nil)
	}

	s.logger.Debug("compiled module", zap.String("id", id), zap.Int("source_bytes", len(wasmBytes)))

	return &CompiledArtifact{ID: id, Source: wasmBytes, Compiled: compiled}, nil
}
