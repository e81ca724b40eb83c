// Package wasmtest hand-assembles minimal WASM binary modules for tests,
// the same way the teacher's engine_test.go inlines a literal WASM byte
// array rather than shelling out to a toolchain. It exists only to build
// fixtures; nothing outside _test.go files should import it.
package wasmtest

// ValType mirrors the WASM value-type encoding bytes used in type sections.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// Builder assembles a WASM module section by section.
type Builder struct {
	types    [][]byte // encoded functype entries
	imports  [][]byte // encoded import entries
	funcs    []uint32 // typeidx per locally defined function
	code     [][]byte // encoded function bodies
	exports  [][]byte // encoded export entries
	data     [][]byte // encoded data segments
	memMin   uint32
	memMax   uint32
	hasMax   bool
	haveMem  bool
	nImports int // imported functions only; offsets the function index space
}

func New() *Builder {
	return &Builder{}
}

// Type registers a function type and returns its type index.
func (b *Builder) Type(params, results []ValType) uint32 {
	entry := []byte{0x60}
	entry = append(entry, encodeVec(valTypesToBytes(params))...)
	entry = append(entry, encodeVec(valTypesToBytes(results))...)
	b.types = append(b.types, entry)
	return uint32(len(b.types) - 1)
}

// ImportFunc declares an imported function under moduleName/fieldName with
// the given type index, returning its index in the function index space.
func (b *Builder) ImportFunc(moduleName, fieldName string, typeIdx uint32) uint32 {
	entry := append([]byte{}, encodeName(moduleName)...)
	entry = append(entry, encodeName(fieldName)...)
	entry = append(entry, 0x00) // import kind: func
	entry = append(entry, leb128U(typeIdx)...)
	b.imports = append(b.imports, entry)
	b.nImports++
	return uint32(b.nImports - 1)
}

// Func defines a local function body with the given type index, returning
// its index in the function index space (imports occupy the low indices).
func (b *Builder) Func(typeIdx uint32, body []byte) uint32 {
	b.funcs = append(b.funcs, typeIdx)

	var content []byte
	content = append(content, 0x00) // zero local-declaration groups
	content = append(content, body...)
	content = append(content, 0x0b) // end

	encoded := append(leb128U(uint32(len(content))), content...)
	b.code = append(b.code, encoded)

	return uint32(b.nImports + len(b.funcs) - 1)
}

// Memory declares the module's single memory, minPages required, maxPages
// optional (pass 0, false for none).
func (b *Builder) Memory(minPages, maxPages uint32, hasMax bool) {
	b.memMin = minPages
	b.memMax = maxPages
	b.hasMax = hasMax
	b.haveMem = true
}

// ImportMemory declares an imported memory under moduleName/fieldName, for
// building fixtures with more memories than the single-memory ABI allows.
// It does not occupy the function index space.
func (b *Builder) ImportMemory(moduleName, fieldName string, minPages uint32) {
	entry := append([]byte{}, encodeName(moduleName)...)
	entry = append(entry, encodeName(fieldName)...)
	entry = append(entry, 0x02) // import kind: mem
	entry = append(entry, 0x00) // limits flag: no max
	entry = append(entry, leb128U(minPages)...)
	b.imports = append(b.imports, entry)
}

// ExportFunc exports funcIdx under name.
func (b *Builder) ExportFunc(name string, funcIdx uint32) {
	entry := append([]byte{}, encodeName(name)...)
	entry = append(entry, 0x00) // export kind: func
	entry = append(entry, leb128U(funcIdx)...)
	b.exports = append(b.exports, entry)
}

// ExportMemory exports the module's (only) memory under name.
func (b *Builder) ExportMemory(name string) {
	entry := append([]byte{}, encodeName(name)...)
	entry = append(entry, 0x02) // export kind: mem
	entry = append(entry, leb128U(0)...)
	b.exports = append(b.exports, entry)
}

// Data adds an active data segment at the given byte offset into memory 0.
func (b *Builder) Data(offset uint32, payload []byte) {
	entry := []byte{0x00} // active, memory index 0
	entry = append(entry, 0x41)
	entry = append(entry, leb128S(int64(offset))...)
	entry = append(entry, 0x0b)
	entry = append(entry, encodeVec(payload)...)
	b.data = append(b.data, entry)
}

// Bytes assembles the final module.
func (b *Builder) Bytes() []byte {
	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d) // magic
	out = append(out, 0x01, 0x00, 0x00, 0x00) // version

	if len(b.types) > 0 {
		out = append(out, section(1, encodeVecOfVecs(b.types))...)
	}
	if len(b.imports) > 0 {
		out = append(out, section(2, encodeVecOfVecs(b.imports))...)
	}
	if len(b.funcs) > 0 {
		var body []byte
		body = append(body, leb128U(uint32(len(b.funcs)))...)
		for _, t := range b.funcs {
			body = append(body, leb128U(t)...)
		}
		out = append(out, section(3, body)...)
	}
	if b.haveMem {
		var body []byte
		body = append(body, leb128U(1)...) // one memory
		if b.hasMax {
			body = append(body, 0x01)
			body = append(body, leb128U(b.memMin)...)
			body = append(body, leb128U(b.memMax)...)
		} else {
			body = append(body, 0x00)
			body = append(body, leb128U(b.memMin)...)
		}
		out = append(out, section(5, body)...)
	}
	if len(b.exports) > 0 {
		out = append(out, section(7, encodeVecOfVecs(b.exports))...)
	}
	if len(b.code) > 0 {
		out = append(out, section(10, encodeVecOfVecs(b.code))...)
	}
	if len(b.data) > 0 {
		out = append(out, section(11, encodeVecOfVecs(b.data))...)
	}
	return out
}

// --- instruction helpers, for composing function bodies ---

func I64Const(v int64) []byte {
	return append([]byte{0x42}, leb128S(v)...)
}

func I32Const(v int32) []byte {
	return append([]byte{0x41}, leb128S(int64(v))...)
}

func Call(funcIdx uint32) []byte {
	return append([]byte{0x10}, leb128U(funcIdx)...)
}

var Drop = []byte{0x1a}

// InfiniteLoop returns a function body that never returns: loop; br 0; end.
func InfiniteLoop() []byte {
	// block type 0x40 = empty
	return []byte{0x03, 0x40, 0x0c, 0x00, 0x0b}
}

// --- low-level encoding ---

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, leb128U(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

func encodeVec(items []byte) []byte {
	out := leb128U(uint32(len(items)))
	return append(out, items...)
}

func encodeVecOfVecs(items [][]byte) []byte {
	out := leb128U(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func encodeName(s string) []byte {
	return encodeVec([]byte(s))
}

func valTypesToBytes(vs []ValType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}

func leb128U(v uint32) []byte {
	buf := make([]byte, 0, 5)
	x := uint64(v)
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			break
		}
	}
	return buf
}

func leb128S(v int64) []byte {
	buf := make([]byte, 0, 10)
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}
