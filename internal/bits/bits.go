// Package bits implements MSB-first bit stream reading and writing.
//
// Compressed packets are a rule id followed by residue bits with no
// delimiters, packed MSB-first and zero-padded to a byte boundary. Header
// fields are not byte aligned either (IPv4 version nibble, IPv6 flow label),
// so both the parser and the residue codec work on this package.
//
// Values travel as byte slices right-aligned in the minimal byte count:
// a 4-bit value occupies the low nibble of a single byte, a 20-bit value
// the low 20 bits of three bytes.
package bits

import "errors"

// ErrShortBuffer is returned when a read runs past the end of the stream.
// Callers wrap it into their own sentinel (truncated header on the parse
// side, residue underflow on the decompression side).
var ErrShortBuffer = errors.New("bits: read past end of buffer")

// Writer accumulates a bit stream MSB-first.
// The zero value is ready to use.
type Writer struct {
	buf   []byte
	nbits uint32
}

// Len returns the number of bits written so far.
func (w *Writer) Len() uint32 { return w.nbits }

// Bytes returns the accumulated stream, final byte zero-padded.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) writeBit(set bool) {
	if w.nbits%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if set {
		w.buf[len(w.buf)-1] |= 0x80 >> (w.nbits % 8)
	}
	w.nbits++
}

// WriteBits appends the low n bits of the right-aligned value v.
func (w *Writer) WriteBits(v []byte, n uint16) {
	for i := uint16(0); i < n; i++ {
		w.writeBit(At(v, n, i))
	}
}

// WriteUint appends the low n bits of v, MSB first.
func (w *Writer) WriteUint(v uint64, n uint16) {
	for i := n; i > 0; i-- {
		w.writeBit(v&(1<<(i-1)) != 0)
	}
}

// Reader consumes a bit stream MSB-first.
type Reader struct {
	buf []byte
	pos uint32 // bit position
}

// NewReader returns a Reader over buf starting at bit 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current bit position.
func (r *Reader) Pos() uint32 { return r.pos }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() uint32 {
	return uint32(len(r.buf))*8 - r.pos
}

func (r *Reader) readBit() (bool, error) {
	if r.pos >= uint32(len(r.buf))*8 {
		return false, ErrShortBuffer
	}
	set := r.buf[r.pos/8]&(0x80>>(r.pos%8)) != 0
	r.pos++
	return set, nil
}

// ReadBits consumes n bits and returns them right-aligned in the minimal
// byte count.
func (r *Reader) ReadBits(n uint16) ([]byte, error) {
	if r.Remaining() < uint32(n) {
		return nil, ErrShortBuffer
	}
	out := make([]byte, (int(n)+7)/8)
	pad := uint16(len(out))*8 - n
	for i := uint16(0); i < n; i++ {
		set, err := r.readBit()
		if err != nil {
			return nil, err
		}
		if set {
			p := pad + i
			out[p/8] |= 0x80 >> (p % 8)
		}
	}
	return out, nil
}

// ReadUint consumes n bits (n <= 64) as an unsigned integer.
func (r *Reader) ReadUint(n uint16) (uint64, error) {
	if r.Remaining() < uint32(n) {
		return 0, ErrShortBuffer
	}
	var v uint64
	for i := uint16(0); i < n; i++ {
		set, _ := r.readBit()
		v <<= 1
		if set {
			v |= 1
		}
	}
	return v, nil
}

// At reports bit i of a right-aligned n-bit value, counting from the MSB
// (i = 0 is the most significant bit of the value).
func At(v []byte, n uint16, i uint16) bool {
	pad := uint16(len(v))*8 - n
	p := pad + i
	if int(p/8) >= len(v) {
		return false
	}
	return v[p/8]&(0x80>>(p%8)) != 0
}

// Leading returns the first n bits of a right-aligned width-bit value,
// itself right-aligned.
func Leading(v []byte, width, n uint16) []byte {
	out := make([]byte, (int(n)+7)/8)
	pad := uint16(len(out))*8 - n
	for i := uint16(0); i < n; i++ {
		if At(v, width, i) {
			p := pad + i
			out[p/8] |= 0x80 >> (p % 8)
		}
	}
	return out
}

// Low returns the last n bits of a right-aligned width-bit value,
// itself right-aligned.
func Low(v []byte, width, n uint16) []byte {
	out := make([]byte, (int(n)+7)/8)
	pad := uint16(len(out))*8 - n
	for i := uint16(0); i < n; i++ {
		if At(v, width, width-n+i) {
			p := pad + i
			out[p/8] |= 0x80 >> (p % 8)
		}
	}
	return out
}

// Equal compares two right-aligned values numerically, ignoring leading
// zero bytes.
func Equal(a, b []byte) bool {
	a, b = trim(a), trim(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func trim(v []byte) []byte {
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	return v
}

// Set overwrites n bits (n <= 64) of buf at bit offset off with v, MSB
// first. Used to patch computed fields into an already reconstructed header.
func Set(buf []byte, off uint32, n uint16, v uint64) {
	for i := uint16(0); i < n; i++ {
		p := off + uint32(i)
		mask := byte(0x80 >> (p % 8))
		if v&(1<<(n-1-i)) != 0 {
			buf[p/8] |= mask
		} else {
			buf[p/8] &^= mask
		}
	}
}

// Get reads n bits (n <= 64) of buf at bit offset off as an unsigned
// integer.
func Get(buf []byte, off uint32, n uint16) uint64 {
	var v uint64
	for i := uint16(0); i < n; i++ {
		p := off + uint32(i)
		v <<= 1
		if buf[p/8]&(0x80>>(p%8)) != 0 {
			v |= 1
		}
	}
	return v
}

// Concat merges two right-aligned values of the given widths into one
// right-aligned value of width ah+bh bits. Used to stitch an MSB target
// back onto its LSB residue.
func Concat(a []byte, aw uint16, b []byte, bw uint16) []byte {
	var w Writer
	w.WriteBits(a, aw)
	w.WriteBits(b, bw)
	out := w.Bytes()
	// Writer packs MSB-first from bit 0; re-align right.
	total := aw + bw
	r := NewReader(out)
	v, _ := r.ReadBits(total)
	return v
}
