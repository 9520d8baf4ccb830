package imgcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BMP header size constants. The info header's leading size field selects
// the header variant.
const (
	bmpFileHeaderBytes = 14
	bmpOS2V1Bytes      = 12
	bmpInfoBaseBytes   = 16
	bmpInfoV1Bytes     = 40
	bmpInfoV2Bytes     = 52
	bmpInfoV3Bytes     = 56
	bmpInfoV4Bytes     = 108
	bmpInfoV5Bytes     = 124
	bmpMaskFieldBytes  = 12

	// bmpMaxDim bounds both dimensions; anything at or above is rejected.
	bmpMaxDim = 1 << 16
)

// bmpHeaderType identifies the info header variant.
type bmpHeaderType uint8

const (
	bmpHeaderInfoV1 bmpHeaderType = iota
	bmpHeaderInfoV2
	bmpHeaderInfoV3
	bmpHeaderInfoV4
	bmpHeaderInfoV5
	bmpHeaderOS2V1
	bmpHeaderOS2VX
	bmpHeaderUnknown
)

// BMP compression field values.
const (
	bmpCompressionNone          = 0
	bmpCompressionRLE8          = 1
	bmpCompressionRLE4          = 2
	bmpCompressionBitMasks      = 3
	bmpCompressionJpeg          = 4
	bmpCompressionPng           = 5
	bmpCompressionAlphaBitMasks = 6
	bmpCompressionCMYK          = 11
	bmpCompressionCMYKRLE8      = 12
	bmpCompressionCMYKRLE4      = 13
)

// bmpInputFormat selects the pixel engine.
type bmpInputFormat uint8

const (
	bmpFormatStandard bmpInputFormat = iota
	bmpFormatBitMask
	bmpFormatRLE
)

// bmpRowOrder is the vertical order of rows in the pixel array.
type bmpRowOrder uint8

const (
	bmpBottomUp bmpRowOrder = iota
	bmpTopDown
)

var errBmpHeader = errors.New("imgcodec: invalid bmp header")

func leU16(b []byte, off int) uint32 {
	return uint32(binary.LittleEndian.Uint16(b[off:]))
}

func leU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

// bmpRowBytes returns the unpadded byte count of pixels at the given depth.
func bmpRowBytes(pixels, bitsPerPixel int) int {
	return (pixels*bitsPerPixel + 7) / 8
}

func align2(n int) int { return (n + 1) &^ 1 }
func align4(n int) int { return (n + 3) &^ 3 }

// bmpCodec decodes Windows and OS/2 bitmaps, standalone or embedded in an
// ICO container.
type bmpCodec struct {
	codecBase

	bitsPerPixel  int
	inputFormat   bmpInputFormat
	masks         *maskSet
	colorTable    *ColorTable
	numColors     int
	bytesPerColor int

	// pixelDataGap is the distance from the end of the parsed headers
	// (including trailing InfoV1 mask words) to the pixel array. The color
	// table lives inside this gap.
	pixelDataGap int

	rowOrder bmpRowOrder
	rleBytes int
	isIco    bool
}

// newBmpCodec parses the BMP headers from the stream. For BMP-in-ICO the
// 14-byte file header is absent: the stream starts at the info header, the
// total size is unknown, and pixel data begins right after the color table.
func newBmpCodec(s Stream, isIco bool) (*bmpCodec, error) {
	var totalBytes, offset, infoBytes uint32

	if !isIco {
		var hdr [bmpFileHeaderBytes + 4]byte
		if s.Read(hdr[:]) != len(hdr) {
			return nil, fmt.Errorf("%w: short file header", errBmpHeader)
		}
		if hdr[0] != 'B' || hdr[1] != 'M' {
			return nil, fmt.Errorf("%w: bad signature", errBmpHeader)
		}
		totalBytes = leU32(hdr[:], 2)
		offset = leU32(hdr[:], 10)
		if offset < bmpFileHeaderBytes+bmpOS2V1Bytes {
			return nil, fmt.Errorf("%w: pixel data offset inside headers", errBmpHeader)
		}
		infoBytes = leU32(hdr[:], 14)
	} else {
		// The compression field cannot legally be RLE here; a stray RLE
		// value trips the totalBytes check below.
		totalBytes = 0
		offset = 0

		var szBuf [4]byte
		if s.Read(szBuf[:]) != len(szBuf) {
			return nil, fmt.Errorf("%w: short info header size", errBmpHeader)
		}
		infoBytes = leU32(szBuf[:], 0)
	}
	if infoBytes < bmpOS2V1Bytes {
		return nil, fmt.Errorf("%w: info header size %d", errBmpHeader, infoBytes)
	}

	// The size field itself was already consumed.
	infoRemaining := int(infoBytes) - 4
	iBuf := make([]byte, infoRemaining)
	if s.Read(iBuf) != infoRemaining {
		return nil, fmt.Errorf("%w: short info header", errBmpHeader)
	}

	var (
		headerType    bmpHeaderType
		width, height int
		bitsPerPixel  int
		compression   uint32
		numColors     int
		bytesPerColor int
	)
	if infoBytes >= bmpInfoBaseBytes {
		switch infoBytes {
		case bmpInfoV1Bytes:
			headerType = bmpHeaderInfoV1
		case bmpInfoV2Bytes:
			headerType = bmpHeaderInfoV2
		case bmpInfoV3Bytes:
			headerType = bmpHeaderInfoV3
		case bmpInfoV4Bytes:
			headerType = bmpHeaderInfoV4
		case bmpInfoV5Bytes:
			headerType = bmpHeaderInfoV5
		case 16, 20, 24, 28, 32, 36, 42, 46, 48, 60, 64:
			headerType = bmpHeaderOS2VX
		default:
			// Newer or undocumented header versions tend to extend the
			// older layouts, so parsing continues with the base fields.
			Logger().Warn("imgcodec: unknown bmp header format", "size", infoBytes)
			headerType = bmpHeaderUnknown
		}
		width = int(int32(leU32(iBuf, 0)))
		height = int(int32(leU32(iBuf, 4)))
		bitsPerPixel = int(leU16(iBuf, 10))
		if infoRemaining >= 16 {
			compression = leU32(iBuf, 12)
			if infoRemaining >= 32 {
				numColors = int(leU32(iBuf, 28))
			}
		}
		bytesPerColor = 4
	} else {
		// OS2V1 has its own narrow layout: 16-bit dimensions, 3-byte
		// color table entries.
		headerType = bmpHeaderOS2V1
		width = int(leU16(iBuf, 0))
		height = int(leU16(iBuf, 2))
		bitsPerPixel = int(leU16(iBuf, 6))
		bytesPerColor = 3
	}

	rowOrder := bmpBottomUp
	if height < 0 {
		height = -height
		rowOrder = bmpTopDown
	}
	// An ICO entry stacks the XOR mask on top of the AND mask, doubling
	// the stored height.
	if isIco {
		height /= 2
	}
	if width <= 0 || height <= 0 || width >= bmpMaxDim || height >= bmpMaxDim {
		return nil, fmt.Errorf("%w: dimensions %dx%d", errBmpHeader, width, height)
	}

	var masksIn inputMasks
	maskBytes := 0
	var inputFormat bmpInputFormat
	switch compression {
	case bmpCompressionNone:
		inputFormat = bmpFormatStandard
	case bmpCompressionRLE8:
		if bitsPerPixel != 8 {
			Logger().Warn("imgcodec: correcting bmp bits per pixel for RLE8", "bpp", bitsPerPixel)
			bitsPerPixel = 8
		}
		inputFormat = bmpFormatRLE
	case bmpCompressionRLE4:
		if bitsPerPixel != 4 {
			Logger().Warn("imgcodec: correcting bmp bits per pixel for RLE4", "bpp", bitsPerPixel)
			bitsPerPixel = 4
		}
		inputFormat = bmpFormatRLE
	case bmpCompressionBitMasks, bmpCompressionAlphaBitMasks:
		inputFormat = bmpFormatBitMask
		switch headerType {
		case bmpHeaderInfoV1:
			// V1 stores the three mask words after the header.
			var mBuf [bmpMaskFieldBytes]byte
			if s.Read(mBuf[:]) != len(mBuf) {
				return nil, fmt.Errorf("%w: short bit masks", errBmpHeader)
			}
			maskBytes = bmpMaskFieldBytes
			masksIn.red = leU32(mBuf[:], 0)
			masksIn.green = leU32(mBuf[:], 4)
			masksIn.blue = leU32(mBuf[:], 8)
		case bmpHeaderInfoV2, bmpHeaderInfoV3, bmpHeaderInfoV4, bmpHeaderInfoV5:
			masksIn.red = leU32(iBuf, 36)
			masksIn.green = leU32(iBuf, 40)
			masksIn.blue = leU32(iBuf, 44)
		case bmpHeaderOS2VX:
			return nil, fmt.Errorf("%w: OS/2 huffman format unsupported", errBmpHeader)
		default:
			return nil, fmt.Errorf("%w: bit masks without a mask-bearing header", errBmpHeader)
		}
	case bmpCompressionJpeg:
		// A de-facto variant stores RLE24 under the JPEG compression tag.
		if bitsPerPixel == 24 {
			inputFormat = bmpFormatRLE
			break
		}
		return nil, fmt.Errorf("%w: jpeg compression unsupported", errBmpHeader)
	case bmpCompressionPng:
		return nil, fmt.Errorf("%w: png compression unsupported", errBmpHeader)
	case bmpCompressionCMYK, bmpCompressionCMYKRLE8, bmpCompressionCMYKRLE4:
		return nil, fmt.Errorf("%w: CMYK unsupported", errBmpHeader)
	default:
		return nil, fmt.Errorf("%w: compression %d", errBmpHeader, compression)
	}

	// Most BMPs render opaque even when a 32-bit channel is present:
	// authoring tools routinely leave it zero. The alpha mask is honored
	// only for V4+, and for V3 inside an ICO.
	alphaType := AlphaTypeOpaque
	if (headerType == bmpHeaderInfoV3 && isIco) ||
		headerType == bmpHeaderInfoV4 || headerType == bmpHeaderInfoV5 {
		masksIn.alpha = leU32(iBuf, 48)
		if masksIn.alpha != 0 {
			alphaType = AlphaTypeUnpremul
		}
	}

	// 32-bit BMPs inside an ICO use their alpha channel unconditionally.
	if isIco && bitsPerPixel == 32 {
		alphaType = AlphaTypeUnpremul
	}

	switch bitsPerPixel {
	case 16:
		// RGB555 (XRRRRRGGGGGBBBBB) is the standard 16-bit layout; decode
		// it through the mask engine with the default masks.
		if inputFormat != bmpFormatBitMask {
			masksIn.red = 0x7C00
			masksIn.green = 0x03E0
			masksIn.blue = 0x001F
			inputFormat = bmpFormatBitMask
		}
	case 1, 2, 4, 8, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per pixel", errBmpHeader, bitsPerPixel)
	}

	masks, err := newMaskSet(masksIn, bitsPerPixel)
	if err != nil {
		return nil, err
	}

	if inputFormat == bmpFormatRLE && totalBytes <= offset {
		return nil, fmt.Errorf("%w: RLE requires a valid total size", errBmpHeader)
	}
	rleBytes := int(totalBytes) - int(offset)

	bytesRead := bmpFileHeaderBytes + int(infoBytes) + maskBytes
	gap := 0
	if !isIco {
		if int(offset) < bytesRead {
			return nil, fmt.Errorf("%w: pixel data offset inside headers", errBmpHeader)
		}
		gap = int(offset) - bytesRead
	}

	return &bmpCodec{
		codecBase: codecBase{
			info:   MakeImageInfo(width, height, ColorTypeRGBA8888, alphaType),
			stream: s,
		},
		bitsPerPixel:  bitsPerPixel,
		inputFormat:   inputFormat,
		masks:         masks,
		numColors:     numColors,
		bytesPerColor: bytesPerColor,
		pixelDataGap:  gap,
		rowOrder:      rowOrder,
		rleBytes:      rleBytes,
		isIco:         isIco,
	}, nil
}

// onRewind re-parses the headers on the rewound stream, leaving it
// positioned at the color table again. The previously parsed state is kept.
func (c *bmpCodec) onRewind() bool {
	_, err := newBmpCodec(c.stream, c.isIco)
	return err == nil
}

// GetPixels decodes the bitmap into dst.
func (c *bmpCodec) GetPixels(dstInfo ImageInfo, dst []byte, rowBytes int, opts ...DecodeOption) Result {
	o := applyDecodeOptions(opts)
	if r := c.prepareDecode(dstInfo, dst, rowBytes, false, c.onRewind); r != ResultSuccess {
		return r
	}
	if !c.createColorTable(dstInfo.AlphaType) {
		return ResultInvalidInput
	}
	switch c.inputFormat {
	case bmpFormatBitMask:
		return c.decodeMask(dstInfo, dst, rowBytes)
	case bmpFormatRLE:
		return c.decodeRLE(dstInfo, dst, rowBytes, o)
	default:
		return c.decodeStandard(dstInfo, dst, rowBytes)
	}
}

// NewScanlineDecoder is unsupported for BMP.
func (c *bmpCodec) NewScanlineDecoder(ImageInfo) (ScanlineDecoder, Result) {
	return nil, ResultUnimplemented
}

// createColorTable reads the color table for indexed bitmaps and skips the
// remaining gap to the pixel array. For bit depths above 8 it only performs
// the skip.
func (c *bmpCodec) createColorTable(alphaType AlphaType) bool {
	colorBytes := 0
	if c.bitsPerPixel <= 8 {
		maxColors := 1 << c.bitsPerPixel
		// Zero means "use the maximum"; oversized counts are clamped.
		if c.numColors == 0 || c.numColors >= maxColors {
			c.numColors = maxColors
		}

		colorBytes = c.numColors * c.bytesPerColor
		buf := make([]byte, colorBytes)
		if c.stream.Read(buf) != colorBytes {
			Logger().Warn("imgcodec: unable to read bmp color table")
			return false
		}

		colors := make([]PackedColor, maxColors)
		for i := 0; i < c.numColors; i++ {
			blue := buf[i*c.bytesPerColor]
			green := buf[i*c.bytesPerColor+1]
			red := buf[i*c.bytesPerColor+2]
			alpha := uint8(0xFF)
			if alphaType != AlphaTypeOpaque && c.bytesPerColor == 4 {
				alpha = uint8(c.masks.alphaMask()>>24) & buf[i*c.bytesPerColor+3]
			}
			if alphaType == AlphaTypePremul {
				colors[i] = PremultiplyARGB(alpha, red, green, blue)
			} else {
				colors[i] = PackARGB(alpha, red, green, blue)
			}
		}
		// Unused slots decode as opaque black so that out-of-range indices
		// in hostile pixel data stay in bounds.
		for i := c.numColors; i < maxColors; i++ {
			colors[i] = PackARGB(0xFF, 0, 0, 0)
		}
		c.colorTable = NewColorTable(colors)
	}

	// ICO entries have no offset field; their pixel array starts here.
	if !c.isIco {
		if c.pixelDataGap < colorBytes {
			// Seen on old OS/2 files that default the table to max size
			// while declaring a smaller one. Rejecting beats guessing.
			Logger().Warn("imgcodec: bmp pixel data offset inside color table")
			return false
		}
		skip := c.pixelDataGap - colorBytes
		if c.stream.Skip(skip) != skip {
			Logger().Warn("imgcodec: unable to skip to bmp pixel data")
			return false
		}
	}
	return true
}

// decodeStandard handles the uncompressed pixel formats, one source row at
// a time, and applies the ICO AND mask afterwards.
func (c *bmpCodec) decodeStandard(dstInfo ImageInfo, dst []byte, dstRowBytes int) Result {
	width := dstInfo.Width
	height := dstInfo.Height
	rowBytes := align4(bmpRowBytes(width, c.bitsPerPixel))

	var cfg srcConfig
	switch c.bitsPerPixel {
	case 1:
		cfg = srcIndex1
	case 2:
		cfg = srcIndex2
	case 4:
		cfg = srcIndex4
	case 8:
		cfg = srcIndex8
	case 24:
		cfg = srcBGR24
	case 32:
		if dstInfo.AlphaType == AlphaTypeOpaque {
			cfg = srcBGRX32
		} else {
			cfg = srcBGRA32
		}
	default:
		return ResultInvalidInput
	}

	swiz, err := newSwizzler(cfg, c.colorTable, dstInfo, dst, dstRowBytes)
	if err != nil {
		return ResultInvalidInput
	}

	srcRow := make([]byte, rowBytes)
	opaque := true
	for y := 0; y < height; y++ {
		if c.stream.Read(srcRow) != rowBytes {
			Logger().Warn("imgcodec: incomplete bmp pixel data", "row", y)
			return ResultIncompleteInput
		}
		row := y
		if c.rowOrder == bmpBottomUp {
			row = height - 1 - y
		}
		opaque = opaque && swiz.next(srcRow, row).isOpaque()
	}
	c.reallyHasAlpha = !opaque

	if c.isIco {
		if r := c.applyAndMask(dstInfo, dst, dstRowBytes); r != ResultSuccess {
			return r
		}
	}
	return ResultSuccess
}

// applyAndMask reads the 1-bpp ICO AND mask that follows the color rows and
// clears every destination pixel whose mask bit is set.
func (c *bmpCodec) applyAndMask(dstInfo ImageInfo, dst []byte, dstRowBytes int) Result {
	width := dstInfo.Width
	height := dstInfo.Height
	maskRowBytes := align4(bmpRowBytes(width, 1))
	maskRow := make([]byte, maskRowBytes)

	for y := 0; y < height; y++ {
		if c.stream.Read(maskRow) != maskRowBytes {
			Logger().Warn("imgcodec: incomplete AND mask for bmp-in-ico", "row", y)
			return ResultIncompleteInput
		}
		row := y
		if c.rowOrder == bmpBottomUp {
			row = height - 1 - y
		}
		d := dst[row*dstRowBytes:]
		for x := 0; x < width; x++ {
			bit := (maskRow[x>>3] >> (7 - uint(x&7))) & 1
			if bit == 1 {
				o := x * 4
				d[o], d[o+1], d[o+2], d[o+3] = 0, 0, 0, 0
				c.reallyHasAlpha = true
			}
		}
	}
	return ResultSuccess
}
