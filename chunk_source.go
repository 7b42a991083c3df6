package tensorwire

import (
	"io"
	"sync"

	"github.com/eapache/queue"
)

// ChunkSource is the abstract streaming byte source the decoder pulls from.
// The transport layer (connection handling, flow control, retries) lives
// behind this interface; the decoder only ever asks for the next contiguous
// chunk of message bytes.
type ChunkSource interface {
	// Chunk returns the next contiguous chunk, or io.EOF when the source is
	// exhausted. Returned chunks must remain valid until the decode of the
	// whole message completes: the device copy path may still be reading a
	// chunk asynchronously after the next one has been pulled.
	Chunk() ([]byte, error)
}

// ByteSource serves a single in-memory buffer as a ChunkSource. The chunk
// size is configurable so tests can exercise arbitrary chunk boundaries.
type ByteSource struct {
	buf       []byte
	chunkSize int
}

func NewByteSource(buf []byte) *ByteSource {
	return &ByteSource{buf: buf}
}

// SetChunkSize caps the size of chunks handed out. Zero (the default) serves
// the whole remaining buffer in one chunk.
func (s *ByteSource) SetChunkSize(n int) {
	s.chunkSize = n
}

func (s *ByteSource) Chunk() ([]byte, error) {
	if len(s.buf) == 0 {
		return nil, io.EOF
	}
	n := len(s.buf)
	if s.chunkSize > 0 && n > s.chunkSize {
		n = s.chunkSize
	}
	chunk := s.buf[:n]
	s.buf = s.buf[n:]
	return chunk, nil
}

// QueueSource is a thread-safe ChunkSource fed incrementally by a transport.
// The producer calls Push as buffers arrive off the wire and Close when the
// message (or the connection) ends; the decoding goroutine blocks in Chunk
// until a chunk is available. This is the decoder's only blocking point.
type QueueSource struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks *queue.Queue
	closed bool
}

func NewQueueSource() *QueueSource {
	s := &QueueSource{chunks: queue.New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push appends a chunk for the decoder to consume. The source takes no copy;
// the caller must not reuse the buffer until the decode completes.
func (s *QueueSource) Push(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosedSource
	}
	s.chunks.Add(chunk)
	s.cond.Signal()
	return nil
}

// Close marks the end of the stream. Pending chunks are still delivered;
// after they drain, Chunk returns io.EOF. Closing with a decode still
// expecting bytes surfaces as ErrInsufficientData on the decoder side.
func (s *QueueSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

func (s *QueueSource) Chunk() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.chunks.Length() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.chunks.Length() == 0 {
		return nil, io.EOF
	}
	return s.chunks.Remove().([]byte), nil
}
