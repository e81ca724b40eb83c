// Package owasm is an embeddable sandboxed execution engine for oracle
// scripts. Each script is a WebAssembly module supplied by an untrusted
// author; a host application (a blockchain node processing an oracle
// request) compiles the module, caches it, and invokes its two lifecycle
// entry points — prepare, which declares external data sources to query,
// and execute, which aggregates validator-collected answers into a result.
//
// The package meters guest compute via a fixed-quantum gas import, bounds
// guest memory access through a narrow host-call ABI enforcing span-size
// and memory-bounds checks on every call, and mediates all host state
// through the Env capability interface the caller supplies.
package owasm
