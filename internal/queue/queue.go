// Package queue implements the pending-message FIFO: new messages are
// inserted at the front, the dispatcher consumes from the back. That
// front-insert/back-consume discipline gives FIFO-in-arrival-order without
// any explicit priority field.
package queue

import "github.com/g4klx/dapnetgateway/internal/paging"

// Queue is an ordered sequence of paging.Message, owned exclusively by the
// dispatcher. It is not safe for concurrent use — the single-threaded
// event loop is its only caller.
type Queue struct {
	items []paging.Message
}

// PushFront inserts msg at the front of the queue.
func (q *Queue) PushFront(msg paging.Message) {
	q.items = append([]paging.Message{msg}, q.items...)
}

// Back returns the oldest message without removing it, and false if the
// queue is empty.
func (q *Queue) Back() (paging.Message, bool) {
	if len(q.items) == 0 {
		return paging.Message{}, false
	}
	return q.items[len(q.items)-1], true
}

// PopBack removes and returns the oldest message.
func (q *Queue) PopBack() (paging.Message, bool) {
	msg, ok := q.Back()
	if !ok {
		return paging.Message{}, false
	}
	q.items = q.items[:len(q.items)-1]
	return msg, true
}

// Len returns the number of messages currently queued.
func (q *Queue) Len() int {
	return len(q.items)
}
