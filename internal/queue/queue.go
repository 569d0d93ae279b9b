// Package queue provides a bounded priority queue used to keep the
// current best k candidates during a flat index scan.
package queue

// Item represents a candidate in the priority queue.
type Item struct {
	ID       uint32  // Ordinal identifier of the vector
	Distance float32 // Priority of the item in the queue
}

// PriorityQueue is a value-based binary max-heap over Distance.
// The root is always the worst (farthest) of the retained candidates,
// so bounded top-k keeps replacing the root when a closer one arrives.
type PriorityQueue struct {
	items []Item
}

// NewMax initializes a new max-oriented priority queue.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the top (farthest) element without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = Item{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

func (pq *PriorityQueue) less(i, j int) bool {
	return pq.items[i].Distance > pq.items[j].Distance
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
