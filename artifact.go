package owasm

import "github.com/tetratelabs/wazero"

// CompiledArtifact is the result of a successful Compile call: a validated,
// compiled WASM module together with the identity under which it is cached.
// wazero has no portable "serialize a compiled module to a blob" API the
// way some other WASM runtimes do, so the artifact's serialized
// representation is the original source bytes — cheap to keep around, and
// sufficient to re-derive a wazero.CompiledModule if the cache ever needs
// to recompile after a Close.
type CompiledArtifact struct {
	// ID is the content identity the host supplied (its own CID/hash
	// scheme); identical source bytes must be presented under the same ID.
	ID string

	// Source is the original WASM bytes this artifact was compiled from.
	Source []byte

	// Compiled is the wazero-compiled module ready for instantiation.
	Compiled wazero.CompiledModule
}
