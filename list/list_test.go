package list

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fifoElem struct {
	id   int
	next *fifoElem
}

func fifoLinks() Links[fifoElem] {
	return Links[fifoElem]{
		Next:    func(e *fifoElem) *fifoElem { return e.next },
		SetNext: func(e *fifoElem, n *fifoElem) { e.next = n },
	}
}

func TestFIFOOrder(t *testing.T) {
	f := NewFIFO(fifoLinks())
	a, b, c := &fifoElem{id: 1}, &fifoElem{id: 2}, &fifoElem{id: 3}
	f.Push(a)
	f.Push(b)
	f.Push(c)

	require.True(t, f.Any())
	require.Equal(t, a, f.Pop())
	require.Equal(t, b, f.Pop())
	require.Equal(t, c, f.Pop())
	require.True(t, f.Empty())
	require.Nil(t, f.Pop())
}

func TestFIFORejectsDoubleMembership(t *testing.T) {
	f1 := NewFIFO(fifoLinks())
	f2 := NewFIFO(fifoLinks())
	a := &fifoElem{id: 1}
	f1.Push(a)

	require.Panics(t, func() { f2.Push(a) })
}

type prioElem struct {
	key  int
	next *prioElem
}

func TestPriorityListStableOrder(t *testing.T) {
	p := NewPriorityList(PriorityLinks[prioElem]{
		Links: Links[prioElem]{
			Next:    func(e *prioElem) *prioElem { return e.next },
			SetNext: func(e *prioElem, n *prioElem) { e.next = n },
		},
		Less: func(a, b *prioElem) bool { return a.key < b.key },
	})

	e5a := &prioElem{key: 5}
	e1 := &prioElem{key: 1}
	e5b := &prioElem{key: 5}
	e3 := &prioElem{key: 3}

	p.Push(e5a)
	p.Push(e1)
	p.Push(e5b)
	p.Push(e3)

	var order []*prioElem
	for e := p.Pop(); e != nil; e = p.Pop() {
		order = append(order, e)
	}
	require.Equal(t, []*prioElem{e1, e3, e5a, e5b}, order)
}

type setElem struct {
	id         int
	next, prev *setElem
}

func setLinks() DoubleLinks[setElem] {
	return DoubleLinks[setElem]{
		Next:    func(e *setElem) *setElem { return e.next },
		SetNext: func(e *setElem, n *setElem) { e.next = n },
		Prev:    func(e *setElem) *setElem { return e.prev },
		SetPrev: func(e *setElem, p *setElem) { e.prev = p },
	}
}

func TestSetInsertionOrder(t *testing.T) {
	s := NewSet(setLinks())
	a, b, c := &setElem{id: 1}, &setElem{id: 2}, &setElem{id: 3}
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	var seen []int
	s.Each(func(e *setElem) { seen = append(seen, e.id) })
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestSetEraseDuringIteration(t *testing.T) {
	s := NewSet(setLinks())
	a, b, c := &setElem{id: 1}, &setElem{id: 2}, &setElem{id: 3}
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	var seen []int
	s.Each(func(e *setElem) {
		seen = append(seen, e.id)
		if e == b {
			s.Erase(b)
		}
	})
	require.Equal(t, []int{1, 2, 3}, seen)
	require.False(t, s.Empty())

	var after []int
	s.Each(func(e *setElem) { after = append(after, e.id) })
	require.Equal(t, []int{1, 3}, after)
}
