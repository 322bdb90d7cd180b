package remux

import (
	"container/list"

	"github.com/gwuhaolin/metaremux/container/ts"
)

// Entry is a metadata packet waiting for its replay time.
type Entry struct {
	Elapsed uint64 // metadata clock ticks when the packet was read
	PID     uint16 // PID in the metadata stream
	Packet  ts.Packet
}

// Queue holds entries in arrival order. Elapsed values never decrease from
// front to back because they come from a monotonic clock.
type Queue struct {
	ll *list.List // of Entry
}

func NewQueue() *Queue {
	return &Queue{ll: list.New()}
}

func (q *Queue) Push(e Entry) {
	q.ll.PushBack(e)
}

func (q *Queue) Pop() (Entry, bool) {
	e := q.ll.Front()
	if e == nil {
		return Entry{}, false
	}
	q.ll.Remove(e)
	return e.Value.(Entry), true
}

// PopDue removes and returns the front entry if it is due at elapsed.
func (q *Queue) PopDue(elapsed uint64) (Entry, bool) {
	e := q.ll.Front()
	if e == nil || e.Value.(Entry).Elapsed > elapsed {
		return Entry{}, false
	}
	q.ll.Remove(e)
	return e.Value.(Entry), true
}

func (q *Queue) Len() int {
	return q.ll.Len()
}
