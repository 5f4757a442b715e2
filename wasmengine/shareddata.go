/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package wasmengine

import "sync"

// sharedDataEntry is one process-wide key's value plus the CAS token a
// module must present to overwrite it.
type sharedDataEntry struct {
	value []byte
	cas   uint32
}

// SharedDataStore is the process-wide key/value map proxy_get_shared_data
// and proxy_set_shared_data operate on, guarded by allow_shared_data and
// a per-module size cap enforced by the caller.
type SharedDataStore struct {
	mu      sync.RWMutex
	entries map[string]*sharedDataEntry
}

// NewSharedDataStore creates an empty store.
func NewSharedDataStore() *SharedDataStore {
	return &SharedDataStore{entries: make(map[string]*sharedDataEntry)}
}

// Get returns a key's current value and CAS token. The zero CAS token
// means the key has never been written.
func (s *SharedDataStore) Get(key string) ([]byte, uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, 0, false
	}
	return e.value, e.cas, true
}

// Set writes value under key if cas matches the stored token (an absent
// key's token is 0), bumping the token on success. A cas of 0 skips the
// check and always writes. A mismatch returns false
// so the caller can surface StatusCasMismatch.
func (s *SharedDataStore) Set(key string, value []byte, cas uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	current := uint32(0)
	if ok {
		current = e.cas
	}
	if cas != 0 && cas != current {
		return false
	}

	s.entries[key] = &sharedDataEntry{value: value, cas: current + 1}
	return true
}

// QueueRegistry is the process-wide named shared-queue table
// proxy_register_shared_queue / proxy_resolve_shared_queue /
// proxy_enqueue_shared_queue / proxy_dequeue_shared_queue operate on.
type QueueRegistry struct {
	mu          sync.Mutex
	nameToID    map[string]uint32
	queues      map[uint32][][]byte
	subscribers map[uint32][]int32 // queue id -> context ids to notify on enqueue
	nextID      uint32
	maxMessages int
	maxMsgSize  int
}

const (
	defaultMaxQueueMessages = 1000
	defaultMaxQueueMsgSize  = 64 * 1024
)

// NewQueueRegistry creates an empty registry with the default bounds (a
// module can only be denied by these limits, never reconfigure them).
func NewQueueRegistry() *QueueRegistry {
	return &QueueRegistry{
		nameToID:    make(map[string]uint32),
		queues:      make(map[uint32][][]byte),
		subscribers: make(map[uint32][]int32),
		nextID:      1,
		maxMessages: defaultMaxQueueMessages,
		maxMsgSize:  defaultMaxQueueMsgSize,
	}
}

// Register returns the id for name, creating the queue if it doesn't
// exist yet.
func (q *QueueRegistry) Register(name string) uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id, ok := q.nameToID[name]; ok {
		return id
	}
	id := q.nextID
	q.nextID++
	q.nameToID[name] = id
	q.queues[id] = nil
	return id
}

// Resolve looks up an existing queue's id by name without creating one.
func (q *QueueRegistry) Resolve(name string) (uint32, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.nameToID[name]
	return id, ok
}

// Subscribe registers contextID to receive on_queue_ready when id is
// next enqueued to.
func (q *QueueRegistry) Subscribe(id uint32, contextID int32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers[id] = append(q.subscribers[id], contextID)
}

// Enqueue appends data to queue id and returns the subscriber context
// ids that should receive on_queue_ready, or ok=false if the queue is
// unknown, full, or data exceeds the per-message size cap.
func (q *QueueRegistry) Enqueue(id uint32, data []byte) (subscribers []int32, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, exists := q.queues[id]
	if !exists {
		return nil, false
	}
	if len(queue) >= q.maxMessages || len(data) > q.maxMsgSize {
		return nil, false
	}

	q.queues[id] = append(queue, data)
	return append([]int32(nil), q.subscribers[id]...), true
}

// Dequeue pops the oldest message from queue id. ok is false if the
// queue is unknown; empty is true if the queue exists but has nothing
// pending (the ABI's EMPTY status).
func (q *QueueRegistry) Dequeue(id uint32) (data []byte, empty bool, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, exists := q.queues[id]
	if !exists {
		return nil, false, false
	}
	if len(queue) == 0 {
		return nil, true, true
	}

	data = queue[0]
	q.queues[id] = queue[1:]
	return data, false, true
}
