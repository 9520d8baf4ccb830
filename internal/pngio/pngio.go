// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pngio implements the low-level PNG plumbing for imgcodec: chunk
// framing with CRC verification, sequencing of IDAT payloads into one
// continuous deflate stream, per-row filter reversal, and Adam7 pass
// geometry.
//
// The package hands back raw scanlines exactly as they left the filter
// stage: packed at the source bit depth, one scanline per call, pass by
// pass for interlaced streams. Sample expansion and color conversion are
// the caller's business.
package pngio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Signature is the 8-byte PNG file signature.
const Signature = "\x89PNG\r\n\x1a\n"

// PNG color types, as stored in IHDR.
const (
	ColorGray      = 0
	ColorRGB       = 2
	ColorPalette   = 3
	ColorGrayAlpha = 4
	ColorRGBA      = 6
)

// Chunk parsing stages; the PNG specification fixes the chunk order as
// IHDR, then PLTE and tRNS if present, then consecutive IDATs, then IEND.
const (
	stageStart = iota
	stageSeenIHDR
	stageSeenIDAT
	stageSeenIEND
)

var (
	// ErrFormat reports malformed PNG structure.
	ErrFormat = errors.New("pngio: invalid format")

	// ErrTruncated reports input that ended before the image did.
	ErrTruncated = errors.New("pngio: truncated input")

	// ErrUnsupported reports a valid but unimplemented PNG feature.
	ErrUnsupported = errors.New("pngio: unsupported feature")
)

// Reader walks one PNG stream: header chunks first, then filtered
// scanlines pulled through the inflate stream.
type Reader struct {
	r   io.Reader
	crc hash.Hash32
	tmp [13]byte

	// IHDR fields.
	Width     int
	Height    int
	BitDepth  int
	ColorType int
	Interlace bool

	// Palette holds the raw PLTE triples; Trans the raw tRNS payload.
	// Both are nil when the chunk is absent.
	Palette []byte
	Trans   []byte

	stage      int
	idatLength uint32

	// A non-IDAT chunk header pulled ahead by the IDAT sequencer, waiting
	// for ReadEnd.
	pendingLength uint32
	pendingName   string
	pendingValid  bool

	zr        io.ReadCloser
	started   bool
	pass      int
	passWidth int
	passRows  int
	rowInPass int
	filterBpp int
	cr, pr    []byte
}

// NewReader checks the signature and parses every chunk up to the first
// IDAT. On return the IHDR fields, Palette, and Trans are populated and the
// reader is positioned to inflate pixel data.
func NewReader(r io.Reader) (*Reader, error) {
	d := &Reader{r: r, crc: crc32.NewIEEE()}
	var sig [len(Signature)]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, fmt.Errorf("%w: short signature", ErrTruncated)
	}
	if string(sig[:]) != Signature {
		return nil, fmt.Errorf("%w: bad signature", ErrFormat)
	}

	for {
		length, name, err := d.readChunkHeader()
		if err != nil {
			return nil, err
		}
		switch name {
		case "IHDR":
			if d.stage != stageStart {
				return nil, fmt.Errorf("%w: chunk out of order", ErrFormat)
			}
			d.stage = stageSeenIHDR
			if err := d.parseIHDR(length); err != nil {
				return nil, err
			}
		case "PLTE":
			if d.stage != stageSeenIHDR {
				return nil, fmt.Errorf("%w: chunk out of order", ErrFormat)
			}
			if length%3 != 0 || length > 3*256 {
				return nil, fmt.Errorf("%w: bad PLTE length %d", ErrFormat, length)
			}
			d.Palette = make([]byte, length)
			if _, err := io.ReadFull(d.r, d.Palette); err != nil {
				return nil, fmt.Errorf("%w: short PLTE", ErrTruncated)
			}
			d.crc.Write(d.Palette)
			if err := d.verifyChecksum(); err != nil {
				return nil, err
			}
		case "tRNS":
			if d.stage != stageSeenIHDR {
				return nil, fmt.Errorf("%w: chunk out of order", ErrFormat)
			}
			if length > 256 {
				return nil, fmt.Errorf("%w: bad tRNS length %d", ErrFormat, length)
			}
			d.Trans = make([]byte, length)
			if _, err := io.ReadFull(d.r, d.Trans); err != nil {
				return nil, fmt.Errorf("%w: short tRNS", ErrTruncated)
			}
			d.crc.Write(d.Trans)
			if err := d.verifyChecksum(); err != nil {
				return nil, err
			}
		case "IDAT":
			if d.stage != stageSeenIHDR {
				return nil, fmt.Errorf("%w: chunk out of order", ErrFormat)
			}
			d.stage = stageSeenIDAT
			d.idatLength = length
			return d, nil
		case "IEND":
			return nil, fmt.Errorf("%w: no pixel data", ErrFormat)
		default:
			if err := d.skipChunk(length); err != nil {
				return nil, err
			}
		}
	}
}

// readChunkHeader reads one chunk's length and type and primes the CRC.
func (d *Reader) readChunkHeader() (uint32, string, error) {
	if _, err := io.ReadFull(d.r, d.tmp[:8]); err != nil {
		return 0, "", fmt.Errorf("%w: short chunk header", ErrTruncated)
	}
	length := binary.BigEndian.Uint32(d.tmp[:4])
	if length > 0x7FFFFFFF {
		return 0, "", fmt.Errorf("%w: chunk length %d", ErrFormat, length)
	}
	d.crc.Reset()
	d.crc.Write(d.tmp[4:8])
	return length, string(d.tmp[4:8]), nil
}

// skipChunk discards an ancillary chunk's payload while checking its CRC.
func (d *Reader) skipChunk(length uint32) error {
	var buf [4096]byte
	for length > 0 {
		n := len(buf)
		if uint32(n) > length {
			n = int(length)
		}
		if _, err := io.ReadFull(d.r, buf[:n]); err != nil {
			return fmt.Errorf("%w: short chunk payload", ErrTruncated)
		}
		d.crc.Write(buf[:n])
		length -= uint32(n)
	}
	return d.verifyChecksum()
}

func (d *Reader) parseIHDR(length uint32) error {
	if length != 13 {
		return fmt.Errorf("%w: bad IHDR length %d", ErrFormat, length)
	}
	if _, err := io.ReadFull(d.r, d.tmp[:13]); err != nil {
		return fmt.Errorf("%w: short IHDR", ErrTruncated)
	}
	d.crc.Write(d.tmp[:13])

	w := int32(binary.BigEndian.Uint32(d.tmp[0:4]))
	h := int32(binary.BigEndian.Uint32(d.tmp[4:8]))
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: non-positive dimension", ErrFormat)
	}
	d.Width, d.Height = int(w), int(h)
	d.BitDepth = int(d.tmp[8])
	d.ColorType = int(d.tmp[9])
	if d.tmp[10] != 0 {
		return fmt.Errorf("%w: compression method %d", ErrUnsupported, d.tmp[10])
	}
	if d.tmp[11] != 0 {
		return fmt.Errorf("%w: filter method %d", ErrUnsupported, d.tmp[11])
	}
	switch d.tmp[12] {
	case 0:
		d.Interlace = false
	case 1:
		d.Interlace = true
	default:
		return fmt.Errorf("%w: interlace method %d", ErrUnsupported, d.tmp[12])
	}

	if !validDepth(d.ColorType, d.BitDepth) {
		return fmt.Errorf("%w: bit depth %d for color type %d", ErrFormat, d.BitDepth, d.ColorType)
	}
	return d.verifyChecksum()
}

func validDepth(colorType, depth int) bool {
	switch colorType {
	case ColorGray:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case ColorPalette:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case ColorRGB, ColorGrayAlpha, ColorRGBA:
		return depth == 8 || depth == 16
	default:
		return false
	}
}

// Channels returns the number of samples per pixel at the source color
// type.
func (d *Reader) Channels() int {
	switch d.ColorType {
	case ColorGray, ColorPalette:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGB:
		return 3
	case ColorRGBA:
		return 4
	default:
		return 0
	}
}

// RawRowBytes returns the packed scanline size for the given pixel count at
// the source depth.
func (d *Reader) RawRowBytes(pixels int) int {
	return (pixels*d.BitDepth*d.Channels() + 7) / 8
}

// NumPasses returns 1 for a non-interlaced stream, 7 for Adam7.
func (d *Reader) NumPasses() int {
	if d.Interlace {
		return len(Adam7Passes)
	}
	return 1
}

// PassGeometry returns the pass grid for pass p of this image.
func (d *Reader) PassGeometry(p int) InterlacePass {
	if !d.Interlace {
		return InterlacePass{XFactor: 1, YFactor: 1}
	}
	return Adam7Passes[p]
}

// PassDims returns the sub-image dimensions of pass p. Either may be zero
// for small images; such passes carry no scanlines.
func (d *Reader) PassDims(p int) (int, int) {
	return d.PassGeometry(p).Dims(d.Width, d.Height)
}

// Start opens the inflate stream and prepares scanline reading. It must be
// called once, after NewReader and before ReadRow.
func (d *Reader) Start() error {
	zr, err := zlib.NewReader(idatReader{d})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	d.zr = zr
	d.filterBpp = (d.BitDepth*d.Channels() + 7) / 8
	maxRow := 1 + d.RawRowBytes(d.Width)
	d.cr = make([]byte, maxRow)
	d.pr = make([]byte, maxRow)
	d.started = true
	d.pass = -1
	d.rowInPass = 0
	d.passRows = 0
	return nil
}

// ReadRow returns the next unfiltered scanline, packed at the source bit
// depth. Rows arrive pass by pass for interlaced streams; empty passes are
// skipped. The returned slice is valid until the next call.
func (d *Reader) ReadRow() ([]byte, error) {
	if !d.started {
		return nil, fmt.Errorf("%w: reader not started", ErrFormat)
	}
	for d.rowInPass >= d.passRows {
		if d.pass+1 >= d.NumPasses() {
			return nil, io.EOF
		}
		d.pass++
		d.passWidth, d.passRows = d.PassDims(d.pass)
		if d.passWidth == 0 {
			d.passRows = 0
		}
		d.rowInPass = 0
		// The filter's "previous row" is all zero at the top of a pass.
		clear(d.pr[:1+d.RawRowBytes(d.passWidth)])
	}

	n := d.RawRowBytes(d.passWidth)
	cr := d.cr[:1+n]
	pr := d.pr[:1+n]
	if _, err := io.ReadFull(d.zr, cr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: not enough pixel data", ErrTruncated)
		}
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := unfilterRow(cr, pr, d.filterBpp); err != nil {
		return nil, err
	}
	d.rowInPass++
	d.cr, d.pr = d.pr, d.cr
	// After the swap the row just decoded lives in pr.
	return d.pr[1 : 1+n], nil
}

// ReadEnd consumes whatever remains of the image: unread IDAT payload,
// trailing ancillary chunks, and the IEND chunk. Callers treat failures
// here as non-fatal once every scanline has been delivered.
func (d *Reader) ReadEnd() error {
	if d.stage == stageSeenIEND {
		return nil
	}
	// Discard unread payload of the current IDAT chunk plus its CRC,
	// unless the sequencer already walked past it.
	if !d.pendingValid {
		if d.idatLength > 0 {
			if _, err := io.CopyN(io.Discard, d.r, int64(d.idatLength)+4); err != nil {
				return fmt.Errorf("%w: short IDAT tail", ErrTruncated)
			}
			d.idatLength = 0
		} else {
			if _, err := io.ReadFull(d.r, d.tmp[:4]); err != nil {
				return fmt.Errorf("%w: short IDAT checksum", ErrTruncated)
			}
		}
	}

	for {
		var (
			length uint32
			name   string
			err    error
		)
		if d.pendingValid {
			length, name = d.pendingLength, d.pendingName
			d.pendingValid = false
		} else {
			length, name, err = d.readChunkHeader()
			if err != nil {
				return err
			}
		}
		if name == "IEND" {
			d.stage = stageSeenIEND
			if length != 0 {
				return fmt.Errorf("%w: bad IEND length %d", ErrFormat, length)
			}
			return d.verifyChecksum()
		}
		if name == "IDAT" {
			// Spare IDAT chunks past the deflate terminator.
			if _, err := io.CopyN(io.Discard, d.r, int64(length)+4); err != nil {
				return fmt.Errorf("%w: short IDAT tail", ErrTruncated)
			}
			continue
		}
		if err := d.skipChunk(length); err != nil {
			return err
		}
	}
}

// Close releases the inflate stream.
func (d *Reader) Close() error {
	if d.zr != nil {
		err := d.zr.Close()
		d.zr = nil
		return err
	}
	return nil
}

func (d *Reader) verifyChecksum() error {
	if _, err := io.ReadFull(d.r, d.tmp[:4]); err != nil {
		return fmt.Errorf("%w: short checksum", ErrTruncated)
	}
	if binary.BigEndian.Uint32(d.tmp[:4]) != d.crc.Sum32() {
		return fmt.Errorf("%w: checksum mismatch", ErrFormat)
	}
	return nil
}

// idatReader presents the payloads of consecutive IDAT chunks as one
// continuous stream, verifying each chunk's CRC as it is exhausted.
type idatReader struct {
	d *Reader
}

func (ir idatReader) Read(p []byte) (int, error) {
	d := ir.d
	if len(p) == 0 {
		return 0, nil
	}
	for d.idatLength == 0 {
		if err := d.verifyChecksum(); err != nil {
			return 0, err
		}
		length, name, err := d.readChunkHeader()
		if err != nil {
			return 0, err
		}
		if name != "IDAT" {
			// The deflate stream asked for bytes past the last IDAT.
			// Park the header for ReadEnd.
			d.pendingLength, d.pendingName, d.pendingValid = length, name, true
			return 0, io.EOF
		}
		d.idatLength = length
	}
	if uint32(len(p)) > d.idatLength {
		p = p[:d.idatLength]
	}
	n, err := d.r.Read(p)
	d.crc.Write(p[:n])
	d.idatLength -= uint32(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}
