package stream

import (
	"sync"
)

// opusBuffer is a bounded FIFO of encoded packets between the encoder and
// the paced sender.
type opusBuffer struct {
	mu       sync.Mutex
	packets  [][]byte
	maxSize  int
	readPos  int
	writePos int
	closed   bool
	eos      bool
	notEmpty *sync.Cond
	notFull  *sync.Cond
}

func newOpusBuffer(maxPackets int) *opusBuffer {
	ob := &opusBuffer{
		packets: make([][]byte, maxPackets),
		maxSize: maxPackets,
	}
	ob.notEmpty = sync.NewCond(&ob.mu)
	ob.notFull = sync.NewCond(&ob.mu)
	return ob
}

func (ob *opusBuffer) usedLocked() int {
	return (ob.writePos - ob.readPos + ob.maxSize) % ob.maxSize
}

// Push copies data in, waiting while the buffer is full. It reports false
// once the buffer is closed or marked as ended.
func (ob *opusBuffer) Push(data []byte) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for !ob.closed && !ob.eos && ob.usedLocked() >= ob.maxSize-1 {
		ob.notFull.Wait()
	}
	if ob.closed || ob.eos {
		return false
	}
	ob.packets[ob.writePos] = append([]byte(nil), data...)
	ob.writePos = (ob.writePos + 1) % ob.maxSize
	ob.notEmpty.Signal()
	return true
}

// Pop waits for the next packet. It reports false when the buffer is closed,
// or when it is ended and drained.
func (ob *opusBuffer) Pop() ([]byte, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for {
		if ob.closed {
			return nil, false
		}
		if ob.usedLocked() > 0 {
			pkt := ob.packets[ob.readPos]
			ob.packets[ob.readPos] = nil
			ob.readPos = (ob.readPos + 1) % ob.maxSize
			ob.notFull.Signal()
			return pkt, true
		}
		if ob.eos {
			return nil, false
		}
		ob.notEmpty.Wait()
	}
}

func (ob *opusBuffer) BufferedCount() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.usedLocked()
}

// MarkEOS tells readers no more packets are coming.
func (ob *opusBuffer) MarkEOS() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.eos = true
	ob.notEmpty.Broadcast()
	ob.notFull.Broadcast()
}

func (ob *opusBuffer) Close() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.closed = true
	ob.notEmpty.Broadcast()
	ob.notFull.Broadcast()
}
