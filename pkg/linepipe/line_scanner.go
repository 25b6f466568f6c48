package linepipe

import (
	"bytes"
)

// lineRef describes a completed line inside the pending buffer without copying it.
type lineRef struct {
	// parts are borrowed sub-slices of the pending segments, in order
	parts [][]byte

	// offset is the stream offset of the first byte of the line
	offset int64

	// length is the number of line bytes, terminator excluded
	length int64

	// consumed is the number of bytes to advance past, terminator included
	consumed int64
}

// lineScanner finds terminator-delimited lines in a pendingBuffer.
type lineScanner struct {
	term  Terminator
	parts [][]byte
}

// newLineScanner creates a scanner for the given terminator.
func newLineScanner(term Terminator) *lineScanner {
	return &lineScanner{
		term:  term,
		parts: make([][]byte, 0, 4),
	}
}

// scan looks for the next complete line. It returns false when the pending bytes hold no
// terminator yet; those bytes must stay pending until more input arrives. The returned
// parts are only valid until the next call.
func (s *lineScanner) scan(pb *pendingBuffer) (lineRef, bool) {
	if len(pb.segs) == 0 {
		return lineRef{}, false
	}

	// fast path: the whole pending buffer is one region
	if len(pb.segs) == 1 {
		data := pb.segs[0].bytes()
		idx := bytes.Index(data, s.term[:])
		if idx < 0 {
			pb.searched = 1
			return lineRef{}, false
		}
		s.parts = append(s.parts[:0], data[:idx])
		return lineRef{
			parts:    s.parts,
			offset:   pb.offset,
			length:   int64(idx),
			consumed: int64(idx + len(s.term)),
		}, true
	}

	length, ok := s.search(pb)
	if !ok {
		return lineRef{}, false
	}

	s.parts = pb.head(s.parts[:0], length)
	return lineRef{
		parts:    s.parts,
		offset:   pb.offset,
		length:   length,
		consumed: length + int64(len(s.term)),
	}, true
}

// search walks the segments with a cursor and returns the length of the line preceding the
// first terminator. A terminator may have its first byte at the end of one segment and its
// second byte at the start of the next.
func (s *lineScanner) search(pb *pendingBuffer) (int64, bool) {
	var before int64
	for k := 0; k < pb.searched; k++ {
		before += int64(len(pb.segs[k].bytes()))
	}

	// last byte of the previous segment, or -1 when there is none
	prevLast := -1
	if pb.searched > 0 {
		prev := pb.segs[pb.searched-1].bytes()
		prevLast = int(prev[len(prev)-1])
	}

	for k := pb.searched; k < len(pb.segs); k++ {
		data := pb.segs[k].bytes()

		if prevLast == int(s.term[0]) && data[0] == s.term[1] {
			return before - 1, true
		}

		if idx := bytes.Index(data, s.term[:]); idx >= 0 {
			return before + int64(idx), true
		}

		before += int64(len(data))
		prevLast = int(data[len(data)-1])
	}

	pb.searched = len(pb.segs)
	return 0, false
}

// remainder returns the unterminated bytes left in the buffer as a final line.
func (s *lineScanner) remainder(pb *pendingBuffer) (lineRef, bool) {
	if pb.empty() {
		return lineRef{}, false
	}
	s.parts = pb.head(s.parts[:0], pb.size)
	return lineRef{
		parts:    s.parts,
		offset:   pb.offset,
		length:   pb.size,
		consumed: pb.size,
	}, true
}
