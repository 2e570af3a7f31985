package common

import "sync"

// ReceiverBuffer is the channel capacity handed out by Subscribe.
const ReceiverBuffer = 64

// Broadcaster fans book updates out to websocket subscribers. A receiver that
// is not draining its channel misses messages instead of stalling the poller.
type Broadcaster struct {
	mu        *sync.Mutex
	id        uint64
	receivers map[uint64]chan []byte
	closed    bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		mu:        &sync.Mutex{},
		id:        0,
		receivers: make(map[uint64]chan []byte),
	}
}

// Subscribe registers a buffered receiver and returns its id.
func (b *Broadcaster) Subscribe() (uint64, <-chan []byte) {
	receiver := make(chan []byte, ReceiverBuffer)
	return b.RegisterReceiver(receiver), receiver
}

func (b *Broadcaster) RegisterReceiver(receiver chan []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(receiver)
		return b.id
	}

	b.receivers[b.id] = receiver
	b.id++

	return b.id - 1
}

func (b *Broadcaster) UnregisterReceiver(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if receiver, exists := b.receivers[id]; exists {
		close(receiver)
		delete(b.receivers, id)
	}
}

// Broadcast delivers message to every receiver that has room for it and
// reports how many receivers got it.
func (b *Broadcaster) Broadcast(message []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, receiver := range b.receivers {
		select {
		case receiver <- message:
			delivered++
		default:
		}
	}
	return delivered
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, receiver := range b.receivers {
		close(receiver)
		delete(b.receivers, id)
	}

	b.closed = true
}
