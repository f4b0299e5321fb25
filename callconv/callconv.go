// Package callconv implements the function-call marshaller: building
// a dynamic argument list out of (size, value, copy, destroy)
// descriptors, laying it out on the stack, and guaranteeing each
// parameter's destructor runs exactly once regardless of whether the
// callee returns normally or propagates an exception.
//
// Grounded on code/Function.cpp's FnCall (paramsSize/copyParams/
// destroyParams/doCall) and code/ValType.h/cpp (size+isFloat
// tagging), generalized from the X86-specific inline assembly to a
// pluggable Invoker since this module does not emit real machine
// code (spec.md §1).
package callconv

import (
	"github.com/hashicorp/go-multierror"

	"github.com/coreruntime/corert/sizeof"
)

// ValType tags a parameter or return value by size and by whether it
// routes through the target ABI's floating-point registers, mirroring
// code::ValType.
type ValType struct {
	Size    sizeof.Size
	IsFloat bool
}

// ValVoid is the ValType of a function returning nothing.
func ValVoid() ValType { return ValType{} }

// ValPtr is the ValType of a single machine pointer.
func ValPtr() ValType { return ValType{Size: sizeof.Ptr} }

// CopyFn copies one parameter's value into the call's argument block
// at dst. dst is exactly roundUp(Param.Type.Size, ptr size) bytes.
type CopyFn func(dst []byte)

// DestroyFn destroys the value previously copied into slot. It must
// be safe to call exactly once, and must not panic: it runs during
// unwind as well as on the normal path (spec.md §4.G step 5).
type DestroyFn func(slot []byte)

// Param is one argument descriptor accumulated on a FnCall.
type Param struct {
	Type    ValType
	Copy    CopyFn
	Destroy DestroyFn
}

// Invoker transfers control to the callee with the marshalled
// argument block already laid out, and returns the raw result bytes
// (sized per the call's return ValType). Actually placing a stack
// frame and branching to a function pointer needs a platform
// assembly trampoline; that belongs to the code generator this
// package's teacher project emits separately, so corert leaves it as
// this seam.
type Invoker func(args []byte) ([]byte, error)

// FnCall accumulates parameters for one call and drives copy/invoke/
// destroy in the order spec.md §4.G mandates.
type FnCall struct {
	params []Param
	ret    ValType
}

// New starts a call descriptor returning values of type ret.
func New(ret ValType) *FnCall {
	return &FnCall{ret: ret}
}

// Add appends one parameter, in left-to-right declaration order.
func (c *FnCall) Add(p Param) {
	c.params = append(c.params, p)
}

// paramsSize computes the total argument block size, each parameter
// rounded up to the pointer size, mirroring FnCall::paramsSize.
func (c *FnCall) paramsSize() uint32 {
	ptr := sizeof.Ptr.Current().Size
	var total uint32
	for _, p := range c.params {
		total += roundUp(p.Type.Size.Current().Size, ptr)
	}
	return total
}

func roundUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// offsets returns, for each parameter, its byte offset into the
// argument block and its rounded slot width.
func (c *FnCall) offsets() ([]uint32, []uint32) {
	ptr := sizeof.Ptr.Current().Size
	offs := make([]uint32, len(c.params))
	widths := make([]uint32, len(c.params))
	var at uint32
	for i, p := range c.params {
		w := roundUp(p.Type.Size.Current().Size, ptr)
		offs[i] = at
		widths[i] = w
		at += w
	}
	return offs, widths
}

// Call copies every parameter into a freshly sized argument block,
// invokes fn, and destroys every copied parameter — in reverse
// declaration order when a copy function or fn panics (spec.md §4.G step 6: "if
// any copy function throws, destroy all previously copied parameters
// in reverse order, then re-propagate"), in forward order on the
// normal path (matching FnCall::destroyParams, which walks the block
// front-to-back since by then every slot is populated).
func (c *FnCall) Call(fn Invoker) (result []byte, err error) {
	block := make([]byte, c.paramsSize())
	offs, widths := c.offsets()

	copied := 0
	destroyRange := func(n int) {
		for i := n - 1; i >= 0; i-- {
			c.params[i].Destroy(block[offs[i] : offs[i]+widths[i]])
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				destroyRange(copied)
				panic(r)
			}
		}()
		for i, p := range c.params {
			p.Copy(block[offs[i] : offs[i]+widths[i]])
			copied = i + 1
		}
	}()

	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				destroyRange(len(c.params))
				panic(r)
			}
		}()
		result, callErr = fn(block)
	}()

	var errs *multierror.Error
	for i := range c.params {
		errs = destroySlot(errs, c.params[i], block[offs[i]:offs[i]+widths[i]])
	}
	if callErr != nil {
		errs = multierror.Append(errs, callErr)
	}
	return result, errs.ErrorOrNil()
}

// destroySlot runs one parameter's destructor, recovering a panic
// into an aggregated error so that every remaining destructor still
// runs even if an earlier one misbehaves.
func destroySlot(errs *multierror.Error, p Param, slot []byte) (out *multierror.Error) {
	out = errs
	defer func() {
		if r := recover(); r != nil {
			out = multierror.Append(out, panicError{r})
		}
	}()
	p.Destroy(slot)
	return out
}

type panicError struct{ v any }

func (e panicError) Error() string { return "callconv: destructor panicked" }

// ReturnClass buckets a return ValType by the size-class dispatch
// spec.md §4.G mandates for placing the callee's result.
type ReturnClass int

const (
	// ReturnScalar is a single machine word: one return register.
	ReturnScalar ReturnClass = iota
	// ReturnPair is two machine words: a pair of return registers.
	ReturnPair
	// ReturnIndirect is larger than two words: the caller passes a
	// pointer to its own result buffer as a synthetic first argument.
	ReturnIndirect
)

// Classify reports which ReturnClass a ValType falls into for the
// current ABI.
func Classify(v ValType) ReturnClass {
	ptr := sizeof.Ptr.Current().Size
	sz := v.Size.Current().Size
	switch {
	case sz <= ptr:
		return ReturnScalar
	case sz <= 2*ptr:
		return ReturnPair
	default:
		return ReturnIndirect
	}
}
