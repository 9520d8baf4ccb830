package imgcodec

import (
	"errors"
	"fmt"
)

const (
	icoDirBytes   = 6
	icoEntryBytes = 16

	// icoMaxEntryBytes bounds a single directory entry's declared payload
	// so a hostile header cannot force an arbitrary allocation.
	icoMaxEntryBytes = 1 << 26
)

var errIcoHeader = errors.New("imgcodec: invalid ico header")

// isIcoSignature matches the ICONDIR prologue: reserved zero, type 1.
func isIcoSignature(b []byte) bool {
	return b[0] == 0 && b[1] == 0 && b[2] == 1 && b[3] == 0
}

// NewBmpFromIco parses a BMP stream whose 14-byte file header is absent, as
// stored inside an ICO directory entry. The stored height covers the XOR
// and AND masks together and is halved; pixel data begins immediately after
// the color table.
func NewBmpFromIco(s Stream) (Codec, error) {
	return newBmpCodec(s, true)
}

// newIcoCodec walks the ICO directory, selects the best entry (largest
// area, then deepest), and returns the codec for that entry's payload: a
// Vista-style PNG entry or a headerless BMP.
func newIcoCodec(s Stream) (Codec, error) {
	var dir [icoDirBytes]byte
	if s.Read(dir[:]) != len(dir) {
		return nil, fmt.Errorf("%w: short directory", errIcoHeader)
	}
	if !isIcoSignature(dir[:4]) {
		return nil, fmt.Errorf("%w: bad signature", errIcoHeader)
	}
	count := int(leU16(dir[:], 4))
	if count == 0 {
		return nil, fmt.Errorf("%w: empty directory", errIcoHeader)
	}

	entries := make([]byte, count*icoEntryBytes)
	if s.Read(entries) != len(entries) {
		return nil, fmt.Errorf("%w: short directory entries", errIcoHeader)
	}

	var bestOffset, bestSize uint32
	bestArea, bestDepth := -1, -1
	for i := 0; i < count; i++ {
		e := entries[i*icoEntryBytes:]
		// A zero dimension byte encodes 256.
		w := int(e[0])
		if w == 0 {
			w = 256
		}
		h := int(e[1])
		if h == 0 {
			h = 256
		}
		depth := int(leU16(e, 6))
		size := leU32(e, 8)
		offset := leU32(e, 12)
		area := w * h
		if area > bestArea || (area == bestArea && depth > bestDepth) {
			bestArea, bestDepth = area, depth
			bestOffset, bestSize = offset, size
		}
	}
	if bestSize == 0 || bestSize > icoMaxEntryBytes {
		return nil, fmt.Errorf("%w: entry size %d", errIcoHeader, bestSize)
	}

	consumed := icoDirBytes + count*icoEntryBytes
	if int(bestOffset) >= consumed {
		skip := int(bestOffset) - consumed
		if s.Skip(skip) != skip {
			return nil, fmt.Errorf("%w: entry offset beyond input", errIcoHeader)
		}
	} else {
		// Entry data stored in front of (or inside) the directory; walk
		// from the start.
		if !s.Rewind() {
			return nil, ErrCouldNotRewind
		}
		if s.Skip(int(bestOffset)) != int(bestOffset) {
			return nil, fmt.Errorf("%w: entry offset beyond input", errIcoHeader)
		}
	}

	data := make([]byte, bestSize)
	n := s.Read(data)
	if n == 0 {
		return nil, fmt.Errorf("%w: no entry data", errIcoHeader)
	}
	// A short entry is handed on as-is; the inner codec reports
	// IncompleteInput if its pixel data runs out.
	sub := NewBytesStream(data[:n])

	if n >= len(pngSignature) && string(data[:len(pngSignature)]) == pngSignature {
		return newPngCodec(sub)
	}
	return newBmpCodec(sub, true)
}
