// Package wasmshape walks the section headers of a WASM binary module just
// far enough to count memory declarations (imported or locally defined)
// without fully disassembling function bodies. wazero's own compiler
// validates the module in depth; this package only needs to answer the one
// structural question the store asks before handing bytes to wazero: does
// this module declare more than one memory?
package wasmshape

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrTruncated indicates the byte stream ended mid-section or mid-header.
	ErrTruncated = errors.New("wasmshape: truncated module")
	// ErrBadMagic indicates the input is shorter than the 8-byte WASM header
	// or does not start with the 4-byte WASM magic (the version is not checked).
	ErrBadMagic = errors.New("wasmshape: not a WASM binary module")
)

const (
	sectionImport = 2
	sectionMemory = 5
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

// MemoryCount returns the number of memories a module declares, counting
// both memory imports and locally defined memories, by walking section
// headers only.
func MemoryCount(wasmBytes []byte) (int, error) {
	if len(wasmBytes) < 8 {
		return 0, ErrBadMagic
	}
	var magic [4]byte
	copy(magic[:], wasmBytes[:4])
	if magic != wasmMagic {
		return 0, ErrBadMagic
	}

	count := 0
	offset := 8
	for offset < len(wasmBytes) {
		id := wasmBytes[offset]
		offset++

		size, n, err := readVarUint32(wasmBytes[offset:])
		if err != nil {
			return 0, err
		}
		offset += n

		if offset+int(size) > len(wasmBytes) {
			return 0, ErrTruncated
		}
		body := wasmBytes[offset : offset+int(size)]
		offset += int(size)

		switch id {
		case sectionMemory:
			n, _, err := readVarUint32(body)
			if err != nil {
				return 0, err
			}
			count += int(n)
		case sectionImport:
			n, err := countMemoryImports(body)
			if err != nil {
				return 0, err
			}
			count += n
		}
	}
	return count, nil
}

// countMemoryImports parses an import-section body just far enough to count
// entries whose import kind is memory (kind byte 0x02).
func countMemoryImports(body []byte) (int, error) {
	n, off, err := readVarUint32(body)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := uint32(0); i < n; i++ {
		// module name
		strLen, adv, err := readVarUint32(body[off:])
		if err != nil {
			return 0, err
		}
		off += adv + int(strLen)
		// field name
		strLen, adv, err = readVarUint32(body[off:])
		if err != nil {
			return 0, err
		}
		off += adv + int(strLen)
		if off >= len(body) {
			return 0, ErrTruncated
		}
		kind := body[off]
		off++
		switch kind {
		case 0x00: // func: typeidx
			_, adv, err := readVarUint32(body[off:])
			if err != nil {
				return 0, err
			}
			off += adv
		case 0x01: // table: elemtype(1) + limits
			off++
			adv, err := skipLimits(body[off:])
			if err != nil {
				return 0, err
			}
			off += adv
		case 0x02: // memory: limits
			count++
			adv, err := skipLimits(body[off:])
			if err != nil {
				return 0, err
			}
			off += adv
		case 0x03: // global: valtype(1) + mutability(1)
			off += 2
		default:
			return 0, errors.New("wasmshape: unknown import kind")
		}
	}
	return count, nil
}

func skipLimits(body []byte) (int, error) {
	if len(body) < 1 {
		return 0, ErrTruncated
	}
	flags := body[0]
	off := 1
	_, adv, err := readVarUint32(body[off:])
	if err != nil {
		return 0, err
	}
	off += adv
	if flags&0x01 != 0 {
		_, adv, err := readVarUint32(body[off:])
		if err != nil {
			return 0, err
		}
		off += adv
	}
	return off, nil
}

// readVarUint32 decodes an unsigned LEB128 value, returning the value, the
// number of bytes consumed, and any error.
func readVarUint32(b []byte) (uint32, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, ErrTruncated
	}
	return uint32(v), n, nil
}
