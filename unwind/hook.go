package unwind

import "github.com/coreruntime/corert/addr"

// Finder looks up unwind data for pc, reporting a miss via the second
// return value. Both the platform unwinder's own lookup and this
// table satisfy it.
type Finder func(pc addr.Address) (*FDE, bool)

// Hook builds the process-wide FDE-find override: it must first
// delegate to the platform's prior implementation, and only fall back
// to the JIT table on a miss (spec.md §6, grounded on
// code/X64/PosixEh.cpp's _Unwind_Find_FDE override, which calls the
// libgcc implementation resolved via dlsym(RTLD_NEXT, ...) before
// consulting dwarfTable()).
//
// Actually wiring this into a real libgcc/libunwind symbol requires
// cgo and a platform-specific dynamic-symbol lookup, which is outside
// this module's scope (spec.md §1 excludes linker/packaging); Hook
// models the contract so a host binary can wire it up with whatever
// platform glue it has available.
func Hook(prev Finder, table *Table) Finder {
	return func(pc addr.Address) (*FDE, bool) {
		if fde, ok := prev(pc); ok {
			return fde, true
		}
		if fde := table.Find(pc); fde != nil {
			return fde, true
		}
		return nil, false
	}
}

// NoPriorFinder is a Finder that never finds anything, useful when a
// host has no platform-native unwinder to delegate to first (e.g. in
// tests).
func NoPriorFinder(addr.Address) (*FDE, bool) { return nil, false }
