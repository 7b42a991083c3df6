package tensorwire

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// codedReader is a bounds-checked cursor over a ChunkSource. It tracks the
// total number of bytes consumed and supports a stack of byte-count limits so
// that length-delimited sub-regions can be parsed without ever reading past
// their declared end. No raw positional arithmetic leaks to callers: every
// read is length-validated here.
type codedReader struct {
	source ChunkSource
	chunk  []byte  // unconsumed remainder of the current chunk
	pos    int64   // total bytes consumed from the source
	limits []int64 // absolute end offsets of open sub-regions, innermost last

	depth    int
	maxDepth int
}

func newCodedReader(source ChunkSource, maxDepth int) *codedReader {
	return &codedReader{source: source, maxDepth: maxDepth}
}

func (cr *codedReader) currentLimit() int64 {
	if len(cr.limits) == 0 {
		return math.MaxInt64
	}
	return cr.limits[len(cr.limits)-1]
}

func (cr *codedReader) bytesUntilLimit() int64 {
	return cr.currentLimit() - cr.pos
}

// directBuffer returns the current chunk window, bounded by the innermost
// limit, pulling new chunks from the source as needed. Exhaustion of either
// the source or the limit is truncation.
func (cr *codedReader) directBuffer() ([]byte, error) {
	if cr.bytesUntilLimit() == 0 {
		return nil, ErrInsufficientData
	}
	for len(cr.chunk) == 0 {
		chunk, err := cr.source.Chunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrInsufficientData
			}
			return nil, err
		}
		cr.chunk = chunk
	}
	buf := cr.chunk
	if until := cr.bytesUntilLimit(); int64(len(buf)) > until {
		buf = buf[:until]
	}
	return buf, nil
}

func (cr *codedReader) advance(n int) {
	cr.chunk = cr.chunk[n:]
	cr.pos += int64(n)
}

func (cr *codedReader) readByte() (byte, error) {
	buf, err := cr.directBuffer()
	if err != nil {
		return 0, err
	}
	b := buf[0]
	cr.advance(1)
	return b, nil
}

// tryReadByte is readByte that reports a clean boundary (innermost limit
// reached, or source exhausted) as ok=false rather than an error. Tag reads
// use it so that end-of-message is distinguishable from truncation.
func (cr *codedReader) tryReadByte() (byte, bool, error) {
	if cr.bytesUntilLimit() == 0 {
		return 0, false, nil
	}
	for len(cr.chunk) == 0 {
		chunk, err := cr.source.Chunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(cr.limits) > 0 {
					// the enclosing region declared more bytes than exist
					return 0, false, ErrInsufficientData
				}
				return 0, false, nil
			}
			return 0, false, err
		}
		cr.chunk = chunk
	}
	b := cr.chunk[0]
	cr.advance(1)
	return b, true, nil
}

func (cr *codedReader) readVarint() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b, err := cr.readByte()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			if i == binary.MaxVarintLen64-1 && b > 1 {
				return 0, WireDecodingError{"varint overflows 64 bits"}
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, WireDecodingError{"varint longer than 10 bytes"}
}

// readVarintSizeAsInt reads a varint that must fit the signed 32-bit range,
// the constraint every length prefix on this wire is subject to.
func (cr *codedReader) readVarintSizeAsInt() (int, error) {
	v, err := cr.readVarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, WireDecodingError{"length prefix overflows 32-bit signed range"}
	}
	return int(v), nil
}

// readTagWithCutoff decodes one field tag. ok=false with field 0 signals a
// clean end of message (or of the innermost sub-region); ok=false with a
// nonzero field means the tag exceeded the cutoff and is treated as not
// present, which bounds the recognized field set and rejects garbled tags
// early. A stream ending in the middle of a tag is truncation.
func (cr *codedReader) readTagWithCutoff(cutoff uint32) (field uint32, wt wireType, ok bool, err error) {
	b, ok, err := cr.tryReadByte()
	if err != nil || !ok {
		return 0, 0, false, err
	}
	tag := uint64(b & 0x7f)
	for s := uint(7); b >= 0x80; s += 7 {
		if s >= 35 {
			return 0, 0, false, WireDecodingError{"tag varint overflows 32 bits"}
		}
		if b, err = cr.readByte(); err != nil {
			return 0, 0, false, err
		}
		tag |= uint64(b&0x7f) << s
	}
	field = uint32(tag >> 3)
	wt = wireType(tag & 0x7)
	if tag == 0 || tag > uint64(cutoff) {
		return field, wt, false, nil
	}
	return field, wt, true, nil
}

func (cr *codedReader) readString(n int) (string, error) {
	buf := make([]byte, n)
	if err := cr.readRaw(hostCopier{}, buf, n); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readRaw streams exactly n bytes into dst through the given copier,
// pulling chunks as needed. Each transport chunk is handed to the copier
// once, at increasing offsets; there is no intermediate buffer.
func (cr *codedReader) readRaw(c copier, dst []byte, n int) error {
	off := 0
	for n > 0 {
		buf, err := cr.directBuffer()
		if err != nil {
			return err
		}
		m := len(buf)
		if m > n {
			m = n
		}
		c.copyChunk(dst, off, buf[:m])
		cr.advance(m)
		off += m
		n -= m
	}
	return nil
}

// pushLimit opens a sub-region of n bytes starting at the current position.
// A declared length that overruns an enclosing region is structurally
// malformed and rejected here, before any of it is read.
func (cr *codedReader) pushLimit(n int) error {
	limit := cr.pos + int64(n)
	if limit > cr.currentLimit() {
		return WireDecodingError{"length-delimited region overruns its enclosing region"}
	}
	cr.limits = append(cr.limits, limit)
	return nil
}

// popLimit closes the innermost sub-region, failing if it was not fully
// consumed.
func (cr *codedReader) popLimit() error {
	limit := cr.limits[len(cr.limits)-1]
	cr.limits = cr.limits[:len(cr.limits)-1]
	if cr.pos != limit {
		return WireDecodingError{"length-delimited region not fully consumed"}
	}
	return nil
}

func (cr *codedReader) incrementDepthAndPushLimit(n int) error {
	cr.depth++
	if cr.depth > cr.maxDepth {
		return WireDecodingError{"message nesting exceeds recursion depth bound"}
	}
	return cr.pushLimit(n)
}

func (cr *codedReader) decrementDepthAndPopLimit() error {
	cr.depth--
	return cr.popLimit()
}
