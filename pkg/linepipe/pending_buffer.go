package linepipe

// segment is a borrowed chunk region, possibly partially consumed.
type segment struct {
	data  []byte
	start int
}

// bytes returns the unconsumed part of the segment.
func (s segment) bytes() []byte {
	return s.data[s.start:]
}

// pendingBuffer holds the bytes seen so far that are not yet part of a completed line.
// Regions are referenced, never copied.
type pendingBuffer struct {
	segs []segment

	// size is the number of unconsumed bytes across all segments
	size int64

	// offset is the stream offset of the first unconsumed byte
	offset int64

	// searched is the number of leading segments already searched without finding a terminator
	searched int
}

// append adds a region at the tail of the buffer. Empty regions are ignored.
func (pb *pendingBuffer) append(region []byte) {
	if len(region) == 0 {
		return
	}
	pb.segs = append(pb.segs, segment{data: region})
	pb.size += int64(len(region))
}

// empty reports whether there are no unconsumed bytes.
func (pb *pendingBuffer) empty() bool {
	return pb.size == 0
}

// head appends to parts the sub-slices covering the first n unconsumed bytes.
func (pb *pendingBuffer) head(parts [][]byte, n int64) [][]byte {
	for _, seg := range pb.segs {
		if n <= 0 {
			break
		}
		b := seg.bytes()
		if int64(len(b)) > n {
			b = b[:n]
		}
		parts = append(parts, b)
		n -= int64(len(b))
	}
	return parts
}

// consume advances past the first n bytes, dropping segments that became empty.
// Dropped regions are passed to release when it is non-nil.
func (pb *pendingBuffer) consume(n int64, release func([]byte)) {
	pb.size -= n
	pb.offset += n
	pb.searched = 0

	dropped := 0
	for dropped < len(pb.segs) && n > 0 {
		seg := &pb.segs[dropped]
		remaining := int64(len(seg.data) - seg.start)
		if n < remaining {
			seg.start += int(n)
			break
		}
		n -= remaining
		if release != nil {
			release(seg.data)
		}
		dropped++
	}

	if dropped > 0 {
		kept := copy(pb.segs, pb.segs[dropped:])
		clear(pb.segs[kept:])
		pb.segs = pb.segs[:kept]
	}
}

// reset releases every remaining segment and empties the buffer.
func (pb *pendingBuffer) reset(release func([]byte)) {
	for _, seg := range pb.segs {
		if release != nil {
			release(seg.data)
		}
	}
	clear(pb.segs)
	pb.segs = pb.segs[:0]
	pb.offset += pb.size
	pb.size = 0
	pb.searched = 0
}
