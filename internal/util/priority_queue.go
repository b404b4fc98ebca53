package util

// PriorityQueue is a binary min-heap ordered by a caller-supplied less
// function. The least element is always at the top. A queue created with a
// positive maxSize can be used as a bounded top-k buffer through Insert.
type PriorityQueue[T any] struct {
	heap    []T
	less    func(a, b T) bool
	maxSize int
}

// NewPriorityQueue returns an empty queue. maxSize is only consulted by
// Insert; zero means unbounded.
func NewPriorityQueue[T any](maxSize int, less func(a, b T) bool) *PriorityQueue[T] {
	capacity := maxSize
	if capacity <= 0 {
		capacity = 16
	}
	return &PriorityQueue[T]{
		heap:    make([]T, 0, capacity+1),
		less:    less,
		maxSize: maxSize,
	}
}

// Put adds an element in log(size) time.
func (q *PriorityQueue[T]) Put(v T) {
	q.heap = append(q.heap, v)
	q.upHeap()
}

// Insert adds v if the queue is below maxSize or v is not less than the
// current top, evicting the top when full. It reports whether v was kept.
func (q *PriorityQueue[T]) Insert(v T) bool {
	if q.maxSize <= 0 || len(q.heap) < q.maxSize {
		q.Put(v)
		return true
	}
	if len(q.heap) > 0 && !q.less(v, q.heap[0]) {
		q.heap[0] = v
		q.downHeap()
		return true
	}
	return false
}

// Top returns the least element in constant time. ok is false when empty.
func (q *PriorityQueue[T]) Top() (v T, ok bool) {
	if len(q.heap) == 0 {
		return v, false
	}
	return q.heap[0], true
}

// Pop removes and returns the least element.
func (q *PriorityQueue[T]) Pop() (v T, ok bool) {
	n := len(q.heap)
	if n == 0 {
		return v, false
	}
	v = q.heap[0]
	q.heap[0] = q.heap[n-1]
	var zero T
	q.heap[n-1] = zero
	q.heap = q.heap[:n-1]
	if len(q.heap) > 0 {
		q.downHeap()
	}
	return v, true
}

// AdjustTop restores heap order after the top element was changed in place.
func (q *PriorityQueue[T]) AdjustTop() {
	if len(q.heap) > 0 {
		q.downHeap()
	}
}

// Size returns the number of elements in the queue.
func (q *PriorityQueue[T]) Size() int {
	return len(q.heap)
}

// Clear removes all elements.
func (q *PriorityQueue[T]) Clear() {
	clear(q.heap)
	q.heap = q.heap[:0]
}

func (q *PriorityQueue[T]) upHeap() {
	i := len(q.heap) - 1
	node := q.heap[i]
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(node, q.heap[parent]) {
			break
		}
		q.heap[i] = q.heap[parent]
		i = parent
	}
	q.heap[i] = node
}

func (q *PriorityQueue[T]) downHeap() {
	n := len(q.heap)
	i := 0
	node := q.heap[0]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && q.less(q.heap[right], q.heap[child]) {
			child = right
		}
		if !q.less(q.heap[child], node) {
			break
		}
		q.heap[i] = q.heap[child]
		i = child
	}
	q.heap[i] = node
}
