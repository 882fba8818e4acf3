package container

// chunkedNode is one fixed-capacity node in a ChunkedList.
type chunkedNode[T any] struct {
	elems []T
	next  *chunkedNode[T]
}

// ChunkedList is a singly-linked list of fixed-capacity nodes. Unlike
// Array, Push never copies or invalidates previously returned element
// pointers — a new node is appended once the tail is full — which is why
// a chunked list suits registries like the open-files list
// where a previously handed-out address must stay valid for the life of
// the cycle.
type ChunkedList[T any] struct {
	nodeCap int
	head    *chunkedNode[T]
	tail    *chunkedNode[T]
	length  int
}

// NewChunkedList creates a list whose nodes hold nodeCap elements each.
func NewChunkedList[T any](nodeCap int) *ChunkedList[T] {
	if nodeCap <= 0 {
		nodeCap = 1
	}
	n := &chunkedNode[T]{elems: make([]T, 0, nodeCap)}
	return &ChunkedList[T]{nodeCap: nodeCap, head: n, tail: n}
}

// Len reports the total number of pushed elements across all nodes.
func (l *ChunkedList[T]) Len() int { return l.length }

// Push returns a pointer to a freshly appended, zero-valued slot,
// appending a new node to the chain if the current tail is full. The
// returned pointer remains valid for the life of the list.
func (l *ChunkedList[T]) Push() *T {
	if len(l.tail.elems) == cap(l.tail.elems) {
		n := &chunkedNode[T]{elems: make([]T, 0, l.nodeCap)}
		l.tail.next = n
		l.tail = n
	}
	l.tail.elems = l.tail.elems[:len(l.tail.elems)+1]
	l.length++
	return &l.tail.elems[len(l.tail.elems)-1]
}

// Each calls fn for every element in part-then-next order: all elements
// of a node before moving to node.next, preserving the same
// part->elements then part->next iteration.
func (l *ChunkedList[T]) Each(fn func(*T)) {
	for n := l.head; n != nil; n = n.next {
		for i := range n.elems {
			fn(&n.elems[i])
		}
	}
}
