package linepipe

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	errInvalidUTF8 = errors.New("invalid utf-8 sequence")
	errUnmappable  = errors.New("byte sequence not defined in encoding")
)

// EncodingByName resolves an IANA encoding name such as "utf-8", "iso-8859-1" or
// "windows-1252". Encodings in which the terminator bytes do not stand for themselves
// (UTF-16 and similar) are rejected, since lines are located on raw bytes.
func EncodingByName(name string, term Terminator) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q: %v", ErrInvalidOptions, name, err)
	} else if enc == nil {
		return nil, fmt.Errorf("%w: encoding %q is not supported", ErrInvalidOptions, name)
	}

	encoded, err := enc.NewEncoder().Bytes(term[:])
	if err != nil || string(encoded) != string(term[:]) {
		return nil, fmt.Errorf("%w: encoding %q does not represent terminator %s as itself", ErrInvalidOptions, name, term)
	}

	return enc, nil
}

// lineDecoder turns the byte parts of a line into text. It is not safe for concurrent use.
type lineDecoder struct {
	name    string
	isUTF8  bool
	decoder *encoding.Decoder
	encoder *encoding.Encoder
	scratch []byte
}

// newLineDecoder creates a decoder for enc; a nil encoding means UTF-8.
func newLineDecoder(name string, enc encoding.Encoding) *lineDecoder {
	if enc == nil || enc == unicode.UTF8 || isUTF8Name(enc) {
		if name == "" {
			name = "utf-8"
		}
		return &lineDecoder{name: name, isUTF8: true}
	}
	return &lineDecoder{
		name:    name,
		decoder: enc.NewDecoder(),
		encoder: enc.NewEncoder(),
	}
}

// decode converts the parts to a string. Invalid input is reported, never replaced.
func (d *lineDecoder) decode(parts [][]byte) (string, error) {
	if d.isUTF8 {
		return d.decodeUTF8(parts)
	}

	// x/text decoders work on contiguous input
	raw := d.join(parts)
	out, err := d.decoder.Bytes(raw)
	if err != nil {
		return "", err
	}

	// undefined bytes decode to U+FFFD, which some encodings (GB18030) also define;
	// only a line that does not survive a round trip is invalid
	if bytes.ContainsRune(out, utf8.RuneError) {
		back, err := d.encoder.Bytes(out)
		if err != nil || !bytes.Equal(back, raw) {
			return "", fmt.Errorf("%w at line byte %d", errUnmappable, d.invalidAt(raw, out))
		}
	}
	return string(out), nil
}

// invalidAt returns the index in raw of the first rune of out that does not encode back
// to the bytes it was decoded from.
func (d *lineDecoder) invalidAt(raw, out []byte) int {
	pos := 0
	for len(out) > 0 {
		_, size := utf8.DecodeRune(out)
		back, err := d.encoder.Bytes(out[:size])
		if err != nil || !bytes.HasPrefix(raw[pos:], back) {
			return pos
		}
		pos += len(back)
		out = out[size:]
	}
	return pos
}

func (d *lineDecoder) decodeUTF8(parts [][]byte) (string, error) {
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		if !utf8.Valid(parts[0]) {
			return "", fmt.Errorf("%w at line byte %d", errInvalidUTF8, firstInvalid(parts[0]))
		}
		return string(parts[0]), nil
	}

	// a rune may straddle parts, so validate the joined text
	var sb strings.Builder
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	sb.Grow(n)
	for _, p := range parts {
		sb.Write(p)
	}

	s := sb.String()
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w at line byte %d", errInvalidUTF8, firstInvalid([]byte(s)))
	}
	return s, nil
}

// join returns the parts as one contiguous slice, copying only when there are several.
func (d *lineDecoder) join(parts [][]byte) []byte {
	if len(parts) == 1 {
		return parts[0]
	}
	d.scratch = d.scratch[:0]
	for _, p := range parts {
		d.scratch = append(d.scratch, p...)
	}
	return d.scratch
}

func isUTF8Name(enc encoding.Encoding) bool {
	name, err := ianaindex.IANA.Name(enc)
	return err == nil && name == "UTF-8"
}

// firstInvalid returns the index of the first invalid UTF-8 sequence in b.
func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
