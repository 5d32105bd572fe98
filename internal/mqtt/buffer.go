package mqtt

import "log"

// pendingMsg is a serialized message waiting for the broker to come back.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO of messages published while offline.
// When full, the oldest message is overwritten.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf     []pendingMsg
	head    int // next write position
	count   int
	dropped int  // messages overwritten since startup
	warned  bool // overflow already logged since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]pendingMsg, capacity)}
}

func (r *ringBuffer) push(msg pendingMsg) {
	capacity := len(r.buf)
	if r.count == capacity {
		if !r.warned {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", capacity)
			r.warned = true
		}
		r.dropped++
	} else {
		r.count++
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
}

// drainAll removes and returns every message, oldest first.
func (r *ringBuffer) drainAll() []pendingMsg {
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	out := make([]pendingMsg, r.count)
	oldest := (r.head - r.count + capacity) % capacity
	for i := range out {
		out[i] = r.buf[(oldest+i)%capacity]
		r.buf[(oldest+i)%capacity] = pendingMsg{}
	}

	r.count = 0
	r.head = 0
	r.warned = false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
