package hsf

import (
	"errors"
	"testing"
)

func TestReader_Basic(t *testing.T) {
	r := newReader([]byte{0x12, 0x34, 0x56, 0x78, 'a', 'b', 0})
	if v := r.readU16(); v != 0x1234 {
		t.Errorf("readU16: %04X", v)
	}
	if v := r.readS16(); v != 0x5678 {
		t.Errorf("readS16: %04X", v)
	}
	if s := r.stringAt(4); s != "ab" {
		t.Errorf("stringAt: %q", s)
	}
	if r.tell() != 4 {
		t.Errorf("stringAt moved the cursor to %d", r.tell())
	}
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
}

func TestReader_TruncationLatches(t *testing.T) {
	r := newReader([]byte{1, 2})
	r.enter("test")
	if v := r.readU32(); v != 0 {
		t.Errorf("truncated readU32 returned %d", v)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
	first := r.Err()
	r.seek(0)
	r.readU8()
	if r.Err() != first {
		t.Error("later reads replaced the latched error")
	}
}

func TestReader_SeekOutOfRange(t *testing.T) {
	r := newReader(make([]byte, 8))
	r.seek(9)
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}

func TestReader_UnterminatedString(t *testing.T) {
	r := newReader([]byte{'a', 'b'})
	r.stringAt(0)
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}
