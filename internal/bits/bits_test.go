package bits

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterReaderRoundtrip(t *testing.T) {
	var w Writer
	w.WriteUint(0x5, 3)             // 101
	w.WriteUint(0x12, 8)            // 00010010
	w.WriteBits([]byte{0x0A}, 4)    // 1010
	w.WriteBits([]byte{0xAB, 0xCD}, 16)

	if w.Len() != 31 {
		t.Fatalf("Expected 31 bits written, got %d", w.Len())
	}

	r := NewReader(w.Bytes())
	if v, _ := r.ReadUint(3); v != 0x5 {
		t.Errorf("Expected 0x5, got 0x%x", v)
	}
	if v, _ := r.ReadUint(8); v != 0x12 {
		t.Errorf("Expected 0x12, got 0x%x", v)
	}
	if v, _ := r.ReadBits(4); !bytes.Equal(v, []byte{0x0A}) {
		t.Errorf("Expected 0x0A, got %x", v)
	}
	if v, _ := r.ReadBits(16); !bytes.Equal(v, []byte{0xAB, 0xCD}) {
		t.Errorf("Expected 0xABCD, got %x", v)
	}
	if r.Remaining() != 1 { // final padding bit of the 4-byte buffer
		t.Errorf("Expected 1 bit remaining, got %d", r.Remaining())
	}
}

func TestWriterPacksMSBFirst(t *testing.T) {
	var w Writer
	w.WriteUint(1, 1)
	w.WriteUint(0, 2)
	w.WriteUint(0x3, 2)

	// 1 00 11 → 10011000 after padding
	got := w.Bytes()
	if len(got) != 1 || got[0] != 0x98 {
		t.Fatalf("Expected 0x98, got %x", got)
	}
}

func TestReaderShortBuffer(t *testing.T) {
	r := NewReader([]byte{0xFF})
	if _, err := r.ReadBits(9); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("Expected ErrShortBuffer, got %v", err)
	}
	// Reader state is unchanged after a failed read.
	if v, err := r.ReadUint(8); err != nil || v != 0xFF {
		t.Fatalf("Expected 0xFF after failed read, got %x err %v", v, err)
	}
}

func TestLeadingAndLow(t *testing.T) {
	// 0xA5 = 10100101
	v := []byte{0xA5}
	if got := Leading(v, 8, 4); !bytes.Equal(got, []byte{0x0A}) {
		t.Errorf("Expected leading nibble 0xA, got %x", got)
	}
	if got := Low(v, 8, 4); !bytes.Equal(got, []byte{0x05}) {
		t.Errorf("Expected low nibble 0x5, got %x", got)
	}

	// 20-bit value: flow label style
	fl := []byte{0x0F, 0xFF, 0xAB}
	if got := Low(fl, 20, 8); !bytes.Equal(got, []byte{0xAB}) {
		t.Errorf("Expected low byte 0xAB, got %x", got)
	}
}

func TestConcat(t *testing.T) {
	// MSB(5)=01000 + LSB(3)=011 → 01000011
	msb := []byte{0x08}
	lsb := []byte{0x03}
	got := Concat(msb, 5, lsb, 3)
	if !bytes.Equal(got, []byte{0x43}) {
		t.Fatalf("Expected 0x43, got %x", got)
	}
}

func TestEqualIgnoresLeadingZeros(t *testing.T) {
	if !Equal([]byte{0x00, 0x12}, []byte{0x12}) {
		t.Error("Expected 0x0012 == 0x12")
	}
	if Equal([]byte{0x01, 0x12}, []byte{0x12}) {
		t.Error("Expected 0x0112 != 0x12")
	}
}

func TestSetGet(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	Set(buf, 4, 16, 0x1234)
	if got := Get(buf, 4, 16); got != 0x1234 {
		t.Fatalf("Expected 0x1234, got 0x%x", got)
	}
	// Surrounding bits untouched
	if buf[0]&0xF0 != 0xF0 {
		t.Errorf("Leading nibble clobbered: %x", buf)
	}
	if got := Get(buf, 20, 12); got != 0xFFF {
		t.Errorf("Trailing bits clobbered: %x", buf)
	}
}
