package personality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/frame"
)

type fakeContext struct {
	ip, region, base addr.Address
	installed        *ResumeRegisters
}

func (c *fakeContext) IP() addr.Address          { return c.ip }
func (c *fakeContext) RegionStart() addr.Address { return c.region }
func (c *fakeContext) FrameBase() addr.Address   { return c.base }
func (c *fakeContext) Install(r ResumeRegisters) { c.installed = &r }

// cleanupCall records one CleanupFrom invocation: the frame's own
// (throw-site) active part and the part cleanup stops at.
type cleanupCall struct {
	FramePart frame.Part
	StopPart  frame.Part
}

type fakeOwner struct {
	hasCatch   bool
	catchParts map[frame.Part]Resume
	cleanupLog []frame.Part
	calls      []cleanupCall
}

func (o *fakeOwner) HasCatch() bool { return o.hasCatch }

func (o *fakeOwner) FindCatch(part frame.Part, object ManagedObject) (Resume, bool) {
	r, ok := o.catchParts[part]
	return r, ok
}

func (o *fakeOwner) CleanupFrom(fr frame.StackFrame, part frame.Part) {
	o.cleanupLog = append(o.cleanupLog, part)
	o.calls = append(o.calls, cleanupCall{FramePart: fr.Part, StopPart: part})
}

func extractManaged(class ExceptionClass, data *ExceptionData) (ManagedObject, bool) {
	if class != ManagedClass {
		return nil, false
	}
	return "the exception object", true
}

func newTrailer() *frame.Trailer {
	return &frame.Trailer{
		PartCount: 2,
		Owner:     frame.OwnerID(1),
		Parts: frame.Table{
			{Offset: 0x10, Part: 1},
			{Offset: 0x20, Part: 2},
		},
	}
}

func TestSearchPhaseFindsHandler(t *testing.T) {
	owner := &fakeOwner{hasCatch: true, catchParts: map[frame.Part]Resume{
		1: {IP: 0x9000, Part: 1},
	}}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	data := &ExceptionData{}

	code := Run(Search, ManagedClass, data, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, HandlerFound, code)
	require.Equal(t, addr.Address(0x9000), data.Resume.IP)
	require.Equal(t, frame.Part(1), data.Resume.Part)
}

func TestSearchPhaseNoHandlerContinuesUnwind(t *testing.T) {
	owner := &fakeOwner{hasCatch: false}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	code := Run(Search, ManagedClass, &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, ContinueUnwind, code)
}

func TestSearchPhaseForeignExceptionContinuesUnwind(t *testing.T) {
	owner := &fakeOwner{hasCatch: true, catchParts: map[frame.Part]Resume{1: {}}}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	code := Run(Search, ExceptionClass(0xDEAD), &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, ContinueUnwind, code)
}

func TestHandlerFramePhaseCleansUpAndInstalls(t *testing.T) {
	owner := &fakeOwner{hasCatch: true}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	data := &ExceptionData{AdjustedPtr: "obj", Resume: Resume{IP: 0x9000, Part: 1}}

	code := Run(CleanupPhase|HandlerFrame, ManagedClass, data, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, InstallContext, code)
	require.Equal(t, []frame.Part{1}, owner.cleanupLog)
	require.NotNil(t, ctx.installed)
	require.Equal(t, addr.Address(0x9000), ctx.installed.IP)
	require.Equal(t, "obj", ctx.installed.ReturnValue)
}

// TestHandlerFramePhaseCleansFromThrowSitePartNotCatchPart is the
// literal spec.md §8 cleanup-ordering property: given nested parts
// p1 ⊂ p2 ⊂ p3 and a catch at p1 of an exception thrown in p3,
// cleanup must run from p3 (the throw-site part) down to p1 (the
// catch part), not from p1 to p1. fr.Part must carry the throw-site
// part even though the resume/catch part is p1.
func TestHandlerFramePhaseCleansFromThrowSitePartNotCatchPart(t *testing.T) {
	owner := &fakeOwner{hasCatch: true, catchParts: map[frame.Part]Resume{
		1: {IP: 0x9000, Part: 1},
	}}
	trailer := &frame.Trailer{
		PartCount: 3,
		Owner:     frame.OwnerID(1),
		Parts: frame.Table{
			{Offset: 0x10, Part: 1}, // p1
			{Offset: 0x20, Part: 2}, // p2
			{Offset: 0x30, Part: 3}, // p3: the throw site
		},
	}
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	// ip falls within p3 (offset 0x35), but the catch selected by
	// phase 1 (data.Resume.Part, set up here as if phase 1 already
	// ran) is p1.
	ctx := &fakeContext{ip: 0x1035, region: 0x1000, base: 0x2000}
	data := &ExceptionData{AdjustedPtr: "obj", Resume: Resume{IP: 0x9000, Part: 1}}

	code := Run(CleanupPhase|HandlerFrame, ManagedClass, data, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, InstallContext, code)
	require.Len(t, owner.calls, 1)
	require.Equal(t, frame.Part(3), owner.calls[0].FramePart, "cleanup must start from the throw-site part")
	require.Equal(t, frame.Part(1), owner.calls[0].StopPart, "cleanup must stop at the catch part")
}

func TestNonHandlerCleanupPhaseRunsCleanupAndContinues(t *testing.T) {
	owner := &fakeOwner{hasCatch: true}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	code := Run(CleanupPhase, ManagedClass, &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, ContinueUnwind, code)
	require.Equal(t, []frame.Part{1}, owner.cleanupLog)
}

func TestCleanupPhaseBeforeAnyPartIsNoop(t *testing.T) {
	owner := &fakeOwner{hasCatch: true}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1005, region: 0x1000, base: 0x2000}
	code := Run(CleanupPhase, ManagedClass, &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, ContinueUnwind, code)
	require.Empty(t, owner.cleanupLog)
}

func TestUnmanagedFrameIsLeftAlone(t *testing.T) {
	trailers := func(addr.Address) (*frame.Trailer, bool) { return nil, false }
	owners := func(frame.OwnerID) (Owner, bool) { t.Fatal("owner lookup should not run"); return nil, false }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	code := Run(Search, ManagedClass, &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, ContinueUnwind, code)
}

func TestUnknownActionMaskContinuesUnwind(t *testing.T) {
	owner := &fakeOwner{hasCatch: true}
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return owner, true }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	code := Run(0, ManagedClass, &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	require.Equal(t, ContinueUnwind, code)
}

func TestMalformedOwnerReferencePanics(t *testing.T) {
	trailer := newTrailer()
	trailers := func(addr.Address) (*frame.Trailer, bool) { return trailer, true }
	owners := func(frame.OwnerID) (Owner, bool) { return nil, false }

	ctx := &fakeContext{ip: 0x1015, region: 0x1000, base: 0x2000}
	require.Panics(t, func() {
		Run(Search, ManagedClass, &ExceptionData{}, ctx, trailers, owners, extractManaged, nil)
	})
}
