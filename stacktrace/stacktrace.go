// Package stacktrace implements stack-trace capture and symbolic
// formatting: a frame-pointer walk that stops at the bounds of the
// current stack region, and a pluggable FnLookup chain that turns a
// captured frame into a human-readable name.
//
// Grounded on code/StackTrace.h/cpp (StackFrame/StackTrace, the
// onStack/prevFrame/prevIp/prevParam walk) and code/FnLookup.h/cpp
// (FnLookup/CppLookup/ArenaLookup). The original reads ebp directly
// via inline assembly and walks raw process memory; this package
// takes a pluggable MemoryReader instead, since reading another
// frame's memory needs a live-process or core-dump backend this
// module does not provide (spec.md §1 scopes that out).
package stacktrace

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/frame"
	"github.com/coreruntime/corert/sizeof"
)

// MaxParams is the fixed number of argument slots captured per frame,
// mirroring code::StackFrame::maxParams.
const MaxParams = 3

// Frame is a bitwise copy of one activation record: a return address
// and a handful of argument slots, which may contain garbage if the
// callee took fewer than MaxParams arguments. Captured frames must
// never be dereferenced as live objects once the producing stack has
// unwound (spec.md §4.I).
type Frame struct {
	Code   addr.Address
	Params [MaxParams]addr.Address
}

// Trace is a captured stack: a bitwise copy of the walk, taken with
// minimal processing so capture stays cheap even from inside an
// exception path.
type Trace struct {
	Frames []Frame
}

// Count returns the number of captured frames.
func (t Trace) Count() int { return len(t.Frames) }

// String renders the trace with no symbolic lookup at all — just
// indices and raw addresses — mirroring StackTrace::output.
func (t Trace) String() string {
	var b strings.Builder
	for i, f := range t.Frames {
		fmt.Fprintf(&b, "\n%3d: %s", i, f.Code)
	}
	return b.String()
}

// MemoryReader reads one pointer-sized word from the target's address
// space at the given address, standing in for direct pointer
// dereference in the original.
type MemoryReader interface {
	ReadWord(at addr.Address) addr.Address
}

// wordSize is the pointer width the frame layout uses between
// consecutive slots (saved frame pointer, return IP, then params).
func wordSize() int64 {
	return int64(sizeof.Ptr.Current().Size)
}

// Capture walks saved-frame-pointer links starting at base, for as
// long as the linked frame remains inside [stackMin, stackMax), and
// records (return IP, argument slots) at each one — in that order,
// matching the original's two-pass "count, then fill" walk collapsed
// into one pass since Go slices grow on demand.
func Capture(mem MemoryReader, base, stackMin, stackMax addr.Address) Trace {
	word := wordSize()
	onStack := func(p addr.Address) bool { return p >= stackMin && p < stackMax }
	prevFrame := func(bp addr.Address) addr.Address { return mem.ReadWord(bp) }

	var frames []Frame
	now := base
	for onStack(prevFrame(now)) {
		f := Frame{Code: mem.ReadWord(now.Add(word))}
		for j := 0; j < MaxParams; j++ {
			f.Params[j] = mem.ReadWord(now.Add(word * int64(2+j)))
		}
		frames = append(frames, f)
		now = prevFrame(now)
	}
	return Trace{Frames: frames}
}

// Lookup translates a captured Frame into a name, reporting ok=false
// when it has no information about that frame's code address.
type Lookup interface {
	Format(f Frame) (name string, ok bool)
}

// Composite tries each Lookup in order and returns the first hit,
// mirroring how ArenaLookup falls back to CppLookup's behavior.
type Composite []Lookup

// Format implements Lookup.
func (c Composite) Format(f Frame) (string, bool) {
	for _, l := range c {
		if name, ok := l.Format(f); ok {
			return name, ok
		}
	}
	return "", false
}

// Symbolicator resolves a code address to a symbol name using
// whatever debug information a host has loaded (DWARF line tables,
// an executable's symbol table, ...).
type Symbolicator func(addr.Address) (name string, ok bool)

// DebugInfoLookup is the default lookup: it only knows about
// addresses a Symbolicator can resolve, demangling any Itanium C++ or
// Rust symbol it gets back (grounded on CppLookup, generalized since
// corert may unwind through foreign, non-managed frames whose names
// arrive mangled).
type DebugInfoLookup struct {
	Symbolicate Symbolicator
}

// Format implements Lookup.
func (l DebugInfoLookup) Format(f Frame) (string, bool) {
	if l.Symbolicate == nil {
		return "", false
	}
	name, ok := l.Symbolicate(f.Code)
	if !ok {
		return "", false
	}
	return demangle.Filter(name), true
}

// OwnerNamer resolves the human-readable name an Owner carries for
// itself, the way Binary::ownerName does in the original.
type OwnerNamer func(frame.OwnerID) (name string, ok bool)

// TrailerLookup resolves a code block's trailer from its start
// address. Shared shape with personality.TrailerLookup, kept as its
// own type here so this package does not need to import personality
// just for one function type.
type TrailerLookup func(codeStart addr.Address) (*frame.Trailer, bool)

// FDEFinder locates the DWARF FDE covering a code address and reports
// its code start. *unwind.Table.Find returns the *FDE itself (nil on a
// miss), so it fits this type through a small adapter.
type FDEFinder func(pc addr.Address) (codeStart addr.Address, ok bool)

// DwarfLookup resolves a frame's Owner via the DWARF unwind table and
// asks it for its name, grounded on code/X64/PosixEh.cpp's DwarfInfo.
// Used as the runtime-aware half of a Composite lookup so traces that
// cross JIT-compiled frames still show a name instead of a raw
// address.
type DwarfLookup struct {
	FindFDE  FDEFinder
	Trailers TrailerLookup
	Owners   OwnerNamer
}

// Format implements Lookup.
func (l DwarfLookup) Format(f Frame) (string, bool) {
	if l.FindFDE == nil || l.Trailers == nil {
		return "", false
	}
	codeStart, ok := l.FindFDE(f.Code)
	if !ok {
		return "", false
	}
	trailer, ok := l.Trailers(codeStart)
	if !ok {
		return "", false
	}
	if l.Owners != nil {
		if name, ok := l.Owners(trailer.Owner); ok {
			return name, true
		}
	}
	return "<unnamed managed function>", true
}

// Format renders every frame in t using lookup, one line per frame,
// index first; unresolved frames fall back to the raw address
// (spec.md §4.I).
func Format(t Trace, lookup Lookup) string {
	var b strings.Builder
	for i, f := range t.Frames {
		fmt.Fprintf(&b, "%3d: ", i)
		name, ok := "", false
		if lookup != nil {
			name, ok = lookup.Format(f)
		}
		if ok {
			b.WriteString(name)
		} else {
			b.WriteString(f.Code.String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
