package core

// streaming.go prepares uploaded bytes for the CSV reader without loading the
// whole file first:
//
//   - the UTF-8 BOM written by spreadsheet exports on Windows is dropped
//   - sources that are not UTF-8 are decoded as Windows-1252, which covers the
//     euro sign and accented letters in most European bank exports
//   - stray invalid sequences in otherwise UTF-8 sources become '?'
//   - SizeLimitReader stops reading once the configured size is exceeded

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffSize is how much of the source is inspected to pick an encoding.
const sniffSize = 64 << 10

// DecodeText returns a reader that yields UTF-8 text for r.
func DecodeText(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, sniffSize)

	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		return NewStreamingUTF8Sanitizer(br)
	}

	head, _ := br.Peek(sniffSize)
	head = head[:len(head)-incompleteTrailingBytes(head)]
	if !utf8.Valid(head) {
		return charmap.Windows1252.NewDecoder().Reader(br)
	}
	return NewStreamingUTF8Sanitizer(br)
}

// StreamingUTF8Sanitizer replaces invalid UTF-8 bytes with '?' while
// streaming. Multi-byte sequences split across reads are carried over.
type StreamingUTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless atEOF, an incomplete trailing sequence is held back in pending.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])

		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTrailingBytes returns how many bytes at the end of data start a
// multi-byte sequence that is not finished yet.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the sequence length announced by a leading byte.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// SizeLimitReader counts bytes and fails with ErrFileTooLarge once more than
// Limit bytes have been read. A zero Limit disables the check.
type SizeLimitReader struct {
	reader io.Reader
	Limit  int64
	read   int64
}

// NewSizeLimitReader wraps r with a byte limit.
func NewSizeLimitReader(r io.Reader, limit int64) *SizeLimitReader {
	return &SizeLimitReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *SizeLimitReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)
	if r.Limit > 0 && r.read > r.Limit {
		return n, ErrFileTooLarge
	}
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *SizeLimitReader) BytesRead() int64 { return r.read }
