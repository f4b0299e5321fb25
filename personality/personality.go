// Package personality implements the unwind personality routine: the
// policy a platform unwinder calls once per frame to decide whether a
// propagating managed exception can be caught there, and to drive
// scope cleanup either way.
//
// Grounded on code/X64/PosixEh.cpp's stormPersonality, stormFindPart
// and getData/getParts, adapted from the four-argument GCC/Itanium
// ABI personality signature to an explicit Context interface since
// this module has no cgo binding to a real _Unwind_Context (spec.md
// §1 excludes linker/packaging).
package personality

import (
	"github.com/sirupsen/logrus"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/frame"
)

// Action mirrors the platform unwinder's action mask: which phase is
// running, and whether this call is the distinguished handler frame
// (the frame selected by phase 1 to actually catch the exception).
type Action uint8

const (
	Search Action = 1 << iota
	CleanupPhase
	HandlerFrame
)

// Code mirrors _Unwind_Reason_Code, the small result vocabulary the
// platform unwinder expects back from the personality.
type Code int

const (
	ContinueUnwind Code = iota
	HandlerFound
	InstallContext
)

// ExceptionClass identifies the source language of a propagating
// exception, mirroring the 8-byte vendor tag GCC embeds in
// _Unwind_Exception (0x47 4e 55 43 43 2b 2b 00, "GNUCC++\0"). Only
// ManagedClass is ever caught here; anything else is a foreign
// exception that this personality leaves untouched.
type ExceptionClass uint64

// ManagedClass is the vendor tag this runtime's own throws carry.
const ManagedClass ExceptionClass = 0x474e5543432b2b00

// ManagedObject is the extracted exception payload. Left untyped
// because this package never inspects it: it only ferries the
// pointer from the language extractor to the catching Owner.
type ManagedObject = any

// Resume is the {ip, part} pair an Owner hands back from a
// successful FindCatch in phase 1, stashed in ExceptionData and read
// back by the handler-frame phase (spec.md §4.F step 7's "three
// well-known slots": adjusted pointer, resume ip, switch value).
type Resume struct {
	IP   addr.Address
	Part frame.Part
}

// ExceptionData is the per-exception state threaded through every
// personality call for one in-flight exception, standing in for
// GCC's ExStore fields layered on _Unwind_Exception.
type ExceptionData struct {
	AdjustedPtr ManagedObject
	Resume      Resume
}

// ResumeRegisters is applied to the unwinder context once a handler
// has been selected and its cleanup has run, resuming managed
// execution at the catch site. Limited to the two registers the
// original documents setting — the return-value register and the
// instruction pointer (see SPEC_FULL.md's Open Question decision on
// resume registers); no other registers are modeled.
type ResumeRegisters struct {
	ReturnValue ManagedObject
	IP          addr.Address
}

// Context is the unwinder state for one frame. A real binding needs
// cgo to reach libunwind's _Unwind_Context; this models the contract
// so host glue can supply it.
type Context interface {
	IP() addr.Address
	RegionStart() addr.Address
	FrameBase() addr.Address
	Install(ResumeRegisters)
}

// Extractor inspects a propagating exception and reports the managed
// object it carries, or ok=false for an exception it does not
// recognize (grounded on isStormException: a pointer cast that fails
// when the exception didn't originate from this runtime).
type Extractor func(class ExceptionClass, data *ExceptionData) (object ManagedObject, ok bool)

// Owner is the opaque per-code-block object that knows its own catch
// handlers and drives cleanup. Implemented by whatever compiled the
// managed code; this package only calls it.
type Owner interface {
	// HasCatch reports whether this code block declares any catch
	// handlers at all, letting phase 1 skip the expensive exception
	// extraction for frames that can never catch anything.
	HasCatch() bool
	// FindCatch asks whether the given part catches object, returning
	// the resume descriptor to use if so.
	FindCatch(part frame.Part, object ManagedObject) (Resume, bool)
	// CleanupFrom runs scope destructors from part outward (in
	// reverse declaration order, per the Owner's own per-part
	// descriptor table, which this package never inspects directly).
	CleanupFrom(fr frame.StackFrame, part frame.Part)
}

// TrailerLookup resolves a code block's trailer from its region
// start, the way getData(fn) walks back from the function's end in
// the original.
type TrailerLookup func(regionStart addr.Address) (*frame.Trailer, bool)

// OwnerLookup resolves an OwnerID recorded in a trailer to the
// concrete Owner.
type OwnerLookup func(id frame.OwnerID) (Owner, bool)

// Run executes one personality invocation for one frame. It never
// throws or panics on a foreign exception or an unknown action mask
// (spec.md §7); it does panic on metadata that is internally
// inconsistent (a trailer naming an Owner that does not exist),
// which spec.md §7 classes as fatal corrupt-metadata.
func Run(
	actions Action,
	class ExceptionClass,
	data *ExceptionData,
	ctx Context,
	trailers TrailerLookup,
	owners OwnerLookup,
	extract Extractor,
	log *logrus.Entry,
) Code {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	fn := ctx.RegionStart()
	pc := ctx.IP()

	trailer, ok := trailers(fn)
	if !ok {
		// Not a managed frame: nothing here to search or clean up.
		return ContinueUnwind
	}

	owner, ok := owners(trailer.Owner)
	if !ok {
		panic("personality: trailer references an owner that does not exist")
	}

	part := trailer.Parts.ActivePart(uint32(pc.Sub(fn)))

	switch {
	case actions&Search != 0:
		return searchPhase(owner, part, class, data, extract)
	case actions&CleanupPhase != 0 && actions&HandlerFrame != 0:
		return handlerFramePhase(owner, ctx, data, part)
	case actions&CleanupPhase != 0:
		return cleanupPhase(owner, part, ctx)
	default:
		log.Warn("personality: called with an unrecognized action mask")
		return ContinueUnwind
	}
}

func searchPhase(owner Owner, part frame.Part, class ExceptionClass, data *ExceptionData, extract Extractor) Code {
	if !owner.HasCatch() {
		return ContinueUnwind
	}
	if part == frame.Invalid {
		return ContinueUnwind
	}
	object, ok := extract(class, data)
	if !ok {
		return ContinueUnwind
	}
	resume, ok := owner.FindCatch(part, object)
	if !ok {
		return ContinueUnwind
	}
	data.AdjustedPtr = object
	data.Resume = resume
	return HandlerFound
}

// handlerFramePhase runs the distinguished handler frame's own cleanup
// before resuming into its catch. part is the throw-site active part
// (where unwinding reached this frame), not the catch part: cleanup
// must run every scope from the throw site down to, but not
// including, the catch (spec.md §4.F step 8 / §8's cleanup-ordering
// property), so fr.Part carries the throw-site part while
// data.Resume.Part (the catch part) is passed separately as the stop
// argument.
func handlerFramePhase(owner Owner, ctx Context, data *ExceptionData, part frame.Part) Code {
	fr := frame.StackFrame{Part: part, Base: ctx.FrameBase()}
	owner.CleanupFrom(fr, data.Resume.Part)
	ctx.Install(ResumeRegisters{ReturnValue: data.AdjustedPtr, IP: data.Resume.IP})
	return InstallContext
}

func cleanupPhase(owner Owner, part frame.Part, ctx Context) Code {
	if part == frame.Invalid {
		return ContinueUnwind
	}
	fr := frame.StackFrame{Part: part, Base: ctx.FrameBase()}
	owner.CleanupFrom(fr, part)
	return ContinueUnwind
}
