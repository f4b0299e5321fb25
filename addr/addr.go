// Package addr provides the process-address type shared by the code
// index, the DWARF unwind table, and the stack-frame model.
//
// It is deliberately small: the runtime core never reads or writes
// target memory itself (that belongs to the code generator and the
// GC), it only ever compares and offsets addresses that the GC or the
// platform unwinder hands it.
package addr

import "fmt"

// Address is an absolute address inside the process's own address
// space: the base of a JIT code block, a return address captured
// during a stack walk, or a program counter handed to the personality
// function by the platform unwinder.
type Address uint64

// Add returns a+n. n may be negative (see Offset).
func (a Address) Add(n int64) Address {
	return Address(int64(a) + n)
}

// Sub returns the signed distance a-b.
func (a Address) Sub(b Address) int64 {
	return int64(a) - int64(b)
}

// In reports whether a lies in [base, base+size).
func (a Address) In(base Address, size uint64) bool {
	return a >= base && a < base.Add(int64(size))
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Range describes a contiguous allocation, such as a GC-owned code
// block: [Base, Base+Size).
type Range struct {
	Base Address
	Size uint64
}

// Contains reports whether q falls inside the range.
func (r Range) Contains(q Address) bool {
	return q.In(r.Base, r.Size)
}

// End returns the exclusive end address of the range.
func (r Range) End() Address {
	return r.Base.Add(int64(r.Size))
}
