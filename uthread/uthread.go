// Package uthread implements the cooperative UThread scheduler: one
// ready ring per OS thread, strictly single-threaded execution within
// that ring, and the spawn/leave/afterSwitch/reap lifecycle.
//
// Grounded on code/UThread.cpp. The original hand-writes a raw
// register/stack swap (doSwitch, in inline x86 assembly) and commits
// a new UThread's first resumption point onto its own stack by hand
// (initialStack). Neither is expressible in portable Go without
// cgo or platform assembly, which is out of scope (spec.md §1 excludes
// linker/packaging). corert keeps the same ring/handoff contract —
// only one UThread ever runs at a time, suspension points are exactly
// Leave, Spawn (never suspends the caller) and task completion — and
// realizes the actual context switch as a real Go goroutine blocked on
// an unbuffered channel: sending on a UThread's resume channel is the
// switch "in", and blocking on the caller's own channel is the switch
// "out". The Go runtime then owns the saved register/stack state the
// original saves by hand in doSwitch.
package uthread

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/coreruntime/corert/config"
	"github.com/coreruntime/corert/list"
)

// Stack is a guard-paged virtual memory reservation for one UThread,
// mirroring code::Stack{top, size} and allocStack/freeStack. The Go
// runtime does not execute on this memory — goroutines manage their
// own growable stacks — so Stack exists purely to keep the resource-
// allocation half of spec.md §4.H real: a genuine VM reservation with
// a read-only guard region is made and released per UThread.
type Stack struct {
	mem        []byte
	guardBytes int
}

func allocStack(cfg config.UThread) (*Stack, error) {
	pageSize := unix.Getpagesize()
	guardBytes := cfg.GuardPages * pageSize
	usable := roundUp(cfg.StackBytes, pageSize)
	total := usable + guardBytes

	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("uthread: reserving %d-byte stack: %w", total, err)
	}
	if err := unix.Mprotect(mem[:guardBytes], unix.PROT_READ); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("uthread: marking guard page read-only: %w", err)
	}
	return &Stack{mem: mem, guardBytes: guardBytes}, nil
}

func (s *Stack) free() error {
	return unix.Munmap(s.mem)
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// UThread is one cooperatively scheduled task.
type UThread struct {
	ID uuid.UUID

	stack  *Stack
	fn     func()
	sched  *Scheduler
	resume chan struct{}

	next *UThread // ready-ring link, see threadLinks
}

var threadLinks = list.Links[UThread]{
	Next:    func(e *UThread) *UThread { return e.next },
	SetNext: func(e *UThread, n *UThread) { e.next = n },
}

// Scheduler owns one OS thread's ready ring. A Scheduler must be
// driven by exactly one goroutine (call Pin to lock it to its OS
// thread); spec.md §5 requires no data race is even possible between
// UThreads on one OS thread, which this single-owner contract gives
// for free.
type Scheduler struct {
	cfg config.UThread
	log *logrus.Entry

	ring       *list.FIFO[UThread]
	current    *UThread
	terminated *UThread
	rootResume chan struct{}
}

// NewScheduler creates an empty scheduler for one OS thread.
func NewScheduler(cfg config.UThread, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		cfg:        cfg,
		log:        log,
		ring:       list.NewFIFO(threadLinks),
		rootResume: make(chan struct{}),
	}
}

// Pin locks the calling goroutine to its current OS thread for the
// remainder of its life. Call this once from whichever goroutine
// will drive Spawn/Leave on this Scheduler, so that the ring's "per
// OS thread" partitioning (spec.md §4.H) actually holds.
func (s *Scheduler) Pin() {
	runtime.LockOSThread()
}

// Any reports whether any UThread is ready to run.
func (s *Scheduler) Any() bool { return s.ring.Any() }

// Current returns the UThread currently executing, or ok=false if
// the calling code is the OS thread's own original context rather
// than a scheduled UThread.
func (s *Scheduler) Current() (t *UThread, ok bool) {
	return s.current, s.current != nil
}

// Spawn allocates a new UThread, appends it to the tail of the ready
// ring, and returns immediately without suspending the caller (spec.md
// §5: spawning is not a suspension point).
func (s *Scheduler) Spawn(fn func()) (*UThread, error) {
	stack, err := allocStack(s.cfg)
	if err != nil {
		return nil, err
	}

	t := &UThread{
		ID:     uuid.New(),
		stack:  stack,
		fn:     fn,
		sched:  s,
		resume: make(chan struct{}),
	}

	go t.main()
	s.ring.Push(t)
	return t, nil
}

// main is the trampoline every UThread's goroutine runs: block for
// the first switch-in, reap whatever was deferred by the previous
// occupant of this OS thread, run the task, then retire.
func (t *UThread) main() {
	<-t.resume

	t.sched.afterSwitch()

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.sched.log.Errorf("uthread %s: task escaped with %v", t.ID, r)
				// An exception cannot escape a UThread (spec.md §4.H,
				// §7): this mirrors the original's assert(false) and
				// aborts rather than letting recover() swallow it.
				panic(r)
			}
		}()
		t.fn()
	}()

	t.sched.retire(t)
}

// Leave yields the current UThread to the next one in the ready
// ring (a FIFO round-robin), then blocks until it is scheduled again.
// A no-op if no other UThread is ready.
func (s *Scheduler) Leave() {
	if !s.Any() {
		return
	}
	from := s.current
	next := s.ring.Pop()
	if from != nil {
		s.ring.Push(from)
	}
	s.current = next
	s.switchTo(from, next)
	s.afterSwitch()
}

// switchTo hands control from one occupant of this OS thread to
// another, blocking the caller until it is itself switched back to.
// Either side may be nil, denoting the OS thread's own original
// (non-UThread) context.
func (s *Scheduler) switchTo(from, to *UThread) {
	s.resumeChan(to) <- struct{}{}
	<-s.resumeChan(from)
}

func (s *Scheduler) resumeChan(t *UThread) chan struct{} {
	if t == nil {
		return s.rootResume
	}
	return t.resume
}

// afterSwitch reaps the UThread (if any) that retired just before
// this switch landed. A UThread cannot free its own stack — the
// occupant it switches into performs that free on its behalf (spec.md
// §4.H).
func (s *Scheduler) afterSwitch() {
	if s.terminated == nil {
		return
	}
	t := s.terminated
	s.terminated = nil
	if err := t.stack.free(); err != nil {
		s.log.WithError(err).Warnf("uthread: failed to release stack for %s", t.ID)
	}
}

// retire runs once a UThread's task function has returned: mark it
// for deferred deallocation and switch to whatever runs next (another
// ready UThread, or back to the OS thread's own context if none). The
// retiring goroutine parks forever on its own resume channel after
// this call — nothing ever signals it again — mirroring how the
// original's UThread::main never returns from its final switchTo
// either; only the explicitly managed Stack is freed, by afterSwitch
// in whichever occupant runs next.
func (s *Scheduler) retire(t *UThread) {
	s.terminated = t
	next := s.ring.Pop()
	s.current = next
	s.switchTo(t, next)
}
