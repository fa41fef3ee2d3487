package hsf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// reader is a bounds-checked cursor over the file buffer. HSF addresses data
// by absolute offset, so the whole buffer stays resident and reads either
// advance the cursor or jump to explicit offsets. The first failed read is
// latched with its offset and section; all later reads return zero values.
type reader struct {
	data    []byte
	pos     int
	section string
	err     error
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

// enter names the section for error context in subsequent reads.
func (r *reader) enter(section string) {
	r.section = section
}

func (r *reader) fail(n int) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s section, %d byte read at offset 0x%X (buffer size 0x%X)",
			ErrTruncated, r.section, n, r.pos, len(r.data))
	}
}

func (r *reader) Err() error {
	return r.err
}

func (r *reader) tell() int {
	return r.pos
}

func (r *reader) seek(pos int) {
	if r.err != nil {
		return
	}
	if pos < 0 || pos > len(r.data) {
		r.err = fmt.Errorf("%w: %s section, seek to offset 0x%X (buffer size 0x%X)",
			ErrTruncated, r.section, pos, len(r.data))
		return
	}
	r.pos = pos
}

// bytes returns the next n bytes and advances the cursor.
func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail(n)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) skip(n int) {
	r.bytes(n)
}

// recordCount validates a record count read from the file against the bytes
// remaining at the cursor. Counts are attacker-controlled input and must
// never reach an allocation unchecked; a negative count or one whose records
// cannot fit latches ErrTruncated and yields zero.
func (r *reader) recordCount(n, recordSize int) int {
	if r.err != nil {
		return 0
	}
	if n < 0 || n > (len(r.data)-r.pos)/recordSize {
		r.err = fmt.Errorf("%w: %s section, %d records of %d bytes at offset 0x%X (buffer size 0x%X)",
			ErrTruncated, r.section, n, recordSize, r.pos, len(r.data))
		return 0
	}
	return n
}

func (r *reader) readU8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) readU16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) readS16() int16 {
	return int16(r.readU16())
}

func (r *reader) readU32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) readS32() int32 {
	return int32(r.readU32())
}

func (r *reader) readF32() float32 {
	return math.Float32frombits(r.readU32())
}

// readString decodes a fixed-length byte run as text.
func (r *reader) readString(n int) string {
	return string(r.bytes(n))
}

// stringAt reads a NUL-terminated string at an absolute offset without
// moving the cursor.
func (r *reader) stringAt(ofs int) string {
	if r.err != nil {
		return ""
	}
	if ofs < 0 || ofs >= len(r.data) {
		r.err = fmt.Errorf("%w: %s section, string at offset 0x%X (buffer size 0x%X)",
			ErrTruncated, r.section, ofs, len(r.data))
		return ""
	}
	end := bytes.IndexByte(r.data[ofs:], 0)
	if end < 0 {
		r.err = fmt.Errorf("%w: %s section, unterminated string at offset 0x%X",
			ErrTruncated, r.section, ofs)
		return ""
	}
	return string(r.data[ofs : ofs+end])
}
