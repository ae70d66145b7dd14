package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Stats is the per-engine statistics accumulator. One instance belongs to
// one engine; callers share the engine handle, and counters are atomic so
// packet-path calls from any number of goroutines never lose updates.
type Stats struct {
	processed    atomic.Uint64
	matched      atomic.Uint64
	compressed   atomic.Uint64
	decompressed atomic.Uint64

	parseFailures      atomic.Uint64
	compressFailures   atomic.Uint64
	decompressFailures atomic.Uint64

	originalHeaderBits   atomic.Uint64
	compressedHeaderBits atomic.Uint64
}

// Snapshot is a consistent-enough point-in-time copy for reporting.
type Snapshot struct {
	Processed    uint64
	Matched      uint64
	Compressed   uint64
	Decompressed uint64

	ParseFailures      uint64
	CompressFailures   uint64
	DecompressFailures uint64

	OriginalHeaderBits   uint64
	CompressedHeaderBits uint64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Processed:            s.processed.Load(),
		Matched:              s.matched.Load(),
		Compressed:           s.compressed.Load(),
		Decompressed:         s.decompressed.Load(),
		ParseFailures:        s.parseFailures.Load(),
		CompressFailures:     s.compressFailures.Load(),
		DecompressFailures:   s.decompressFailures.Load(),
		OriginalHeaderBits:   s.originalHeaderBits.Load(),
		CompressedHeaderBits: s.compressedHeaderBits.Load(),
	}
}

// SavedBits returns the cumulative header bits saved by compression.
func (s Snapshot) SavedBits() uint64 {
	if s.CompressedHeaderBits > s.OriginalHeaderBits {
		return 0
	}
	return s.OriginalHeaderBits - s.CompressedHeaderBits
}

// Report renders the operator-facing statistics summary.
func (s Snapshot) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- SCHC Statistics ---\n")
	fmt.Fprintf(&b, "* Packets processed: %d\n", s.Processed)
	matchedPct := 0.0
	if s.Processed > 0 {
		matchedPct = 100 * float64(s.Matched) / float64(s.Processed)
	}
	fmt.Fprintf(&b, "* Packets matched: %d (%.1f%%)\n", s.Matched, matchedPct)
	fmt.Fprintf(&b, "* Packets compressed: %d\n", s.Compressed)
	fmt.Fprintf(&b, "* Packets decompressed: %d\n", s.Decompressed)
	fmt.Fprintf(&b, "* Failures: parse %d, compression %d, decompression %d\n",
		s.ParseFailures, s.CompressFailures, s.DecompressFailures)
	fmt.Fprintf(&b, "* Total original header: %d bits (%.1f bytes)\n",
		s.OriginalHeaderBits, float64(s.OriginalHeaderBits)/8)
	fmt.Fprintf(&b, "* Total compressed header: %d bits (%.1f bytes)\n",
		s.CompressedHeaderBits, float64(s.CompressedHeaderBits)/8)
	if s.OriginalHeaderBits > 0 {
		saved := s.SavedBits()
		denom := s.CompressedHeaderBits
		if denom == 0 {
			denom = 1
		}
		fmt.Fprintf(&b, "* Compression savings: %d bits (%.1f%%, ratio %.2f:1)\n",
			saved,
			100*float64(saved)/float64(s.OriginalHeaderBits),
			float64(s.OriginalHeaderBits)/float64(denom))
	}
	return b.String()
}
