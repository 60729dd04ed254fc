package poll

// queueChunkSize is the number of messages per node in a chunkedQueue.
const queueChunkSize = 64

// chunkedQueue is a chunked linked-list FIFO.
//
// Thread Safety: This struct is NOT thread-safe.
// The caller must provide external synchronization.
type chunkedQueue[T any] struct {
	head   *queueChunk[T]
	tail   *queueChunk[T]
	length int
}

// queueChunk is a fixed-size node in the chunked linked-list.
// It uses readPos/pos cursors for O(1) push/pop without shifting.
type queueChunk[T any] struct {
	items   [queueChunkSize]T
	next    *queueChunk[T]
	readPos int // First unread slot
	pos     int // First unused slot
}

// push adds a message to the back of the queue.
func (q *chunkedQueue[T]) push(v T) {
	if q.tail == nil {
		q.tail = new(queueChunk[T])
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.items) {
		newTail := new(queueChunk[T])
		q.tail.next = newTail
		q.tail = newTail
	}

	q.tail.items[q.tail.pos] = v
	q.tail.pos++
	q.length++
}

// pop removes and returns the message at the front of the queue.
//
// Returns false if the queue is empty.
func (q *chunkedQueue[T]) pop() (v T, ok bool) {
	if q.head == nil || q.head.readPos >= q.head.pos {
		return
	}

	v = q.head.items[q.head.readPos]
	// zero out popped slot for GC safety
	var zero T
	q.head.items[q.head.readPos] = zero
	q.head.readPos++
	q.length--

	// if chunk is now exhausted, free it or reset cursors
	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			q.head = q.head.next
		}
	}

	return v, true
}

// drainTo pops every queued message, appending them to dst, in order.
func (q *chunkedQueue[T]) drainTo(dst []T) []T {
	for {
		v, ok := q.pop()
		if !ok {
			return dst
		}
		dst = append(dst, v)
	}
}

// clear drops every queued message.
func (q *chunkedQueue[T]) clear() {
	*q = chunkedQueue[T]{}
}

// len returns the queue length.
func (q *chunkedQueue[T]) len() int {
	return q.length
}
