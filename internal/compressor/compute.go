package compressor

import (
	"fmt"
	mathbits "math/bits"

	"firestige.xyz/schc/internal/bits"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/rules"
)

// patchComputed fills the compute-action placeholders of a reconstructed
// header: lengths first, then the checksums that cover them.
func patchComputed(header []byte, recon []reconField, payload []byte) error {
	for _, f := range recon {
		if f.desc.CDA != rules.ActionComputeLength {
			continue
		}
		if err := patchLength(header, recon, f, len(payload)); err != nil {
			return err
		}
	}
	for _, f := range recon {
		if f.desc.CDA != rules.ActionComputeChecksum {
			continue
		}
		if err := patchChecksum(header, recon, f, payload); err != nil {
			return err
		}
	}
	return nil
}

// locate returns the reconstructed position of a field id.
func locate(recon []reconField, id core.FieldID) (reconField, bool) {
	for _, f := range recon {
		if f.desc.ID == id {
			return f, true
		}
	}
	return reconField{}, false
}

// anchor returns the byte offset of a field that marks a layer start.
func anchor(recon []reconField, id core.FieldID) (int, bool) {
	f, ok := locate(recon, id)
	if !ok || f.offset%8 != 0 {
		return 0, false
	}
	return int(f.offset / 8), true
}

func patchLength(header []byte, recon []reconField, f reconField, payloadLen int) error {
	switch f.desc.ID {
	case core.FieldIPv4TotalLen:
		start, ok := anchor(recon, core.FieldIPv4Version)
		if !ok {
			return fmt.Errorf("%w: ipv4.total_length without an ipv4 header", core.ErrComputeFailed)
		}
		bits.Set(header, f.offset, f.nbits, uint64(len(header)-start+payloadLen))

	case core.FieldIPv6PayloadLen:
		start, ok := anchor(recon, core.FieldIPv6Version)
		if !ok {
			return fmt.Errorf("%w: ipv6.payload_length without an ipv6 header", core.ErrComputeFailed)
		}
		bits.Set(header, f.offset, f.nbits, uint64(len(header)-(start+40)+payloadLen))

	case core.FieldUDPLength:
		start, ok := anchor(recon, core.FieldUDPSrcPort)
		if !ok {
			return fmt.Errorf("%w: udp.length without a udp header", core.ErrComputeFailed)
		}
		bits.Set(header, f.offset, f.nbits, uint64(len(header)-start+payloadLen))

	case core.FieldQUICLength:
		// QUIC length covers the packet number and everything after it.
		pn, ok := locate(recon, core.FieldQUICPktNumber)
		if !ok {
			return fmt.Errorf("%w: quic.length without a packet number", core.ErrComputeFailed)
		}
		raw, err := fixedVarint(uint64(int(pn.nbits)/8+payloadLen), f.nbits)
		if err != nil {
			return err
		}
		bits.Set(header, f.offset, f.nbits, raw)

	default:
		return fmt.Errorf("%w: compute-length on %s", core.ErrComputeFailed, f.desc.ID)
	}
	return nil
}

// fixedVarint encodes v as a QUIC varint of exactly nbits/8 bytes, returned
// as an unsigned integer of nbits bits.
func fixedVarint(v uint64, nbits uint16) (uint64, error) {
	nbytes := uint64(nbits / 8)
	usable := uint(nbits - 2)
	if usable < 64 && v >= 1<<usable {
		return 0, fmt.Errorf("%w: length %d does not fit a %d-byte varint",
			core.ErrComputeFailed, v, nbytes)
	}
	prefix := uint64(mathbits.TrailingZeros64(nbytes)) // 1,2,4,8 -> 0,1,2,3
	return v | prefix<<usable, nil
}

func patchChecksum(header []byte, recon []reconField, f reconField, payload []byte) error {
	switch f.desc.ID {
	case core.FieldIPv4Checksum:
		start, ok := anchor(recon, core.FieldIPv4Version)
		if !ok {
			return fmt.Errorf("%w: ipv4.checksum without an ipv4 header", core.ErrComputeFailed)
		}
		ihl := int(bits.Get(header, uint32(start)*8+4, 4))
		end := start + ihl*4
		if end > len(header) {
			return fmt.Errorf("%w: ipv4 header extends past reconstruction", core.ErrComputeFailed)
		}
		bits.Set(header, f.offset, f.nbits, 0)
		bits.Set(header, f.offset, f.nbits, uint64(internetChecksum(header[start:end])))

	case core.FieldUDPChecksum:
		return patchUDPChecksum(header, recon, f, payload)

	default:
		return fmt.Errorf("%w: compute-checksum on %s", core.ErrComputeFailed, f.desc.ID)
	}
	return nil
}

// patchUDPChecksum recomputes the UDP checksum over the pseudo-header, the
// UDP header and everything after it, application payload included.
func patchUDPChecksum(header []byte, recon []reconField, f reconField, payload []byte) error {
	udpStart, ok := anchor(recon, core.FieldUDPSrcPort)
	if !ok {
		return fmt.Errorf("%w: udp.checksum without a udp header", core.ErrComputeFailed)
	}
	udpLen := int(bits.Get(header, uint32(udpStart)*8+32, 16))

	var pseudo []byte
	if start, ok := anchor(recon, core.FieldIPv4Version); ok {
		pseudo = make([]byte, 0, 12)
		pseudo = append(pseudo, header[start+12:start+20]...) // src, dst
		pseudo = append(pseudo, 0, 17)
		pseudo = append(pseudo, byte(udpLen>>8), byte(udpLen))
	} else if start, ok := anchor(recon, core.FieldIPv6Version); ok {
		pseudo = make([]byte, 0, 40)
		pseudo = append(pseudo, header[start+8:start+40]...) // src, dst
		pseudo = append(pseudo, byte(udpLen>>24), byte(udpLen>>16), byte(udpLen>>8), byte(udpLen))
		pseudo = append(pseudo, 0, 0, 0, 17)
	} else {
		return fmt.Errorf("%w: udp.checksum without an ip header", core.ErrComputeFailed)
	}

	// The checksum covers udp.length octets; anything beyond that (link-layer
	// trailer padding) is excluded.
	covered := udpLen - (len(header) - udpStart)
	if covered < 0 || covered > len(payload) {
		covered = len(payload)
	}

	bits.Set(header, f.offset, f.nbits, 0)
	sum := internetChecksum(pseudo, header[udpStart:], payload[:covered])
	if sum == 0 {
		sum = 0xFFFF // RFC 768: transmitted as all ones
	}
	bits.Set(header, f.offset, f.nbits, uint64(sum))
	return nil
}

// internetChecksum computes the RFC 1071 ones-complement checksum over the
// concatenation of the given byte slices.
func internetChecksum(first []byte, rest ...[]byte) uint16 {
	buf := first
	if len(rest) > 0 {
		buf = make([]byte, 0, len(first))
		buf = append(buf, first...)
		for _, r := range rest {
			buf = append(buf, r...)
		}
	}
	var sum uint32
	for i := 0; i+1 < len(buf); i += 2 {
		sum += uint32(buf[i])<<8 | uint32(buf[i+1])
	}
	if len(buf)%2 == 1 {
		sum += uint32(buf[len(buf)-1]) << 8
	}
	for sum > 0xFFFF {
		sum = sum>>16 + sum&0xFFFF
	}
	return ^uint16(sum)
}
