// Package gcabi defines the contract the runtime core expects from
// its one external collaborator: the garbage collector. spec.md §1
// treats the GC as an outside party and lists exactly what this
// module consumes from it — the code-allocation primitive, weak
// arrays, watch objects, and root registration — so this package
// pins that contract down as Go interfaces rather than reaching into
// a concrete GC implementation.
//
// Grounded on core/GcWatch.h (the Watch interface: add/remove/clear/
// moved/tagged/clone) and compiler/CodeTable.h's use of
// Gc::isCodeAlloc, Gc::codeSize, Gc::createRoot and
// runtime::allocWeakArray.
package gcabi

import "github.com/coreruntime/corert/addr"

// Watch reports whether any of a set of watched addresses has moved
// since the watch was last cleared. Used to invalidate a sorted index
// without re-scanning every entry.
type Watch interface {
	// Add registers a to be watched.
	Add(a addr.Address)
	// Remove stops watching a.
	Remove(a addr.Address)
	// Clear forgets every watched address and any pending motion.
	Clear()
	// Moved reports whether any watched address has moved since the
	// last Clear. May return false positives, never false negatives.
	Moved() bool
	// Tagged reports whether this watch is permanently "moved",
	// e.g. because it watches something the GC can't track precisely.
	Tagged() bool
}

// Root is a GC root handle: while held, the GC treats the registered
// memory as reachable and will keep any contained pointers updated
// across a collection.
type Root interface {
	// Destroy releases the root. The memory it covered is no longer
	// scanned or kept alive on the root's account.
	Destroy()
}

// Collaborator is everything the runtime core needs from the GC.
type Collaborator interface {
	// IsCodeAlloc reports whether a was allocated as a code block by
	// this collaborator (as opposed to, say, a stack or heap address).
	IsCodeAlloc(a addr.Address) bool
	// CodeSize returns the byte length of the code block that starts
	// at base. base must satisfy IsCodeAlloc.
	CodeSize(base addr.Address) uint64
	// CreateWatch returns a fresh, empty Watch.
	CreateWatch() Watch
	// CreateRoot registers ptrs (a slice of GC-visible pointers) as a
	// root until the returned Root is destroyed.
	CreateRoot(ptrs []*addr.Address) Root
}
