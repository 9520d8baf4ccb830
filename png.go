package imgcodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/gogpu/imgcodec/internal/pngio"
)

// pngSignature is the 8-byte PNG file signature.
const pngSignature = pngio.Signature

// pngMaxPixels caps width*height so that a 4-byte-per-pixel destination
// cannot overflow a 32-bit size.
const pngMaxPixels = (1<<31 - 1) / 4

var errPngHeader = errors.New("imgcodec: invalid png header")

// streamReader adapts a Stream to io.Reader for the chunk parser.
type streamReader struct {
	s Stream
}

func (r streamReader) Read(p []byte) (int, error) {
	n := r.s.Read(p)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// pngCodec decodes PNG streams through the pngio chunk parser and inflate
// stream, swizzling one row at a time.
type pngCodec struct {
	codecBase

	reader       *pngio.Reader
	srcCfg       srcConfig
	numberPasses int
	colorTable   *ColorTable
	swiz         *swizzler
}

// newPngCodec parses the chunks up to the first IDAT and resolves the
// suggested destination info.
func newPngCodec(s Stream) (*pngCodec, error) {
	reader, err := pngio.NewReader(streamReader{s})
	if err != nil {
		return nil, err
	}
	if int64(reader.Width)*int64(reader.Height) > pngMaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", errPngHeader, reader.Width, reader.Height)
	}

	// The suggested destination is always N32; only the alpha type varies
	// by source color type.
	alphaType := AlphaTypeOpaque
	switch reader.ColorType {
	case pngio.ColorPalette:
		if len(reader.Trans) > 0 {
			alphaType = AlphaTypeUnpremul
		}
	case pngio.ColorGray:
	default:
		if len(reader.Trans) > 0 || reader.ColorType == pngio.ColorRGBA ||
			reader.ColorType == pngio.ColorGrayAlpha {
			alphaType = AlphaTypeUnpremul
		}
	}

	return &pngCodec{
		codecBase: codecBase{
			info:   MakeImageInfo(reader.Width, reader.Height, ColorTypeRGBA8888, alphaType),
			stream: s,
		},
		reader: reader,
	}, nil
}

// isGraySource reports whether the stream is plain grayscale, the one
// source admitted into Alpha8 destinations.
func (c *pngCodec) isGraySource() bool {
	return c.reader.ColorType == pngio.ColorGray
}

// onRewind rebuilds the chunk parser over the rewound stream.
func (c *pngCodec) onRewind() bool {
	reader, err := pngio.NewReader(streamReader{c.stream})
	if err != nil {
		return false
	}
	c.reader = reader
	c.swiz = nil
	c.colorTable = nil
	return true
}

// initializeSwizzler resolves the source config, builds the color table for
// paletted streams, and opens the inflate stream.
func (c *pngCodec) initializeSwizzler(dstInfo ImageInfo, dst []byte, rowBytes int) Result {
	c.numberPasses = c.reader.NumPasses()
	c.reallyHasAlpha = false

	switch {
	case c.reader.ColorType == pngio.ColorPalette:
		c.srcCfg = srcIndex8
		if !c.decodePalette(dstInfo.AlphaType == AlphaTypePremul) {
			return ResultInvalidInput
		}
	case dstInfo.ColorType == ColorTypeAlpha8:
		c.srcCfg = srcGray8
	case c.info.AlphaType == AlphaTypeOpaque:
		c.srcCfg = srcRGBX32
	default:
		c.srcCfg = srcRGBA32
	}

	swiz, err := newSwizzler(c.srcCfg, c.colorTable, dstInfo, dst, rowBytes)
	if err != nil {
		return ResultUnimplemented
	}
	c.swiz = swiz

	if err := c.reader.Start(); err != nil {
		Logger().Warn("imgcodec: png inflate start failed", "err", err)
		return mapPngError(err)
	}
	return ResultSuccess
}

// decodePalette builds the color table from PLTE and tRNS.
func (c *pngCodec) decodePalette(premultiply bool) bool {
	pal := c.reader.Palette
	if len(pal) == 0 {
		return false
	}
	numPalette := len(pal) / 3

	// BUGGY IMAGE WORKAROUND
	//
	// Some images contain pixel bytes equal to the palette count, which is
	// a problem since the byte is used as an index. To work around this,
	// grow the table by 1 (if it is < 256) and duplicate the last color
	// into that slot.
	colorCount := numPalette
	if numPalette < 256 {
		colorCount++
	}
	colors := make([]PackedColor, colorCount)

	trans := c.reader.Trans
	numTrans := len(trans)
	if numTrans > numPalette {
		numTrans = numPalette
	}

	i := 0
	for ; i < numTrans; i++ {
		a := trans[i]
		r, g, b := pal[i*3], pal[i*3+1], pal[i*3+2]
		if premultiply {
			colors[i] = PremultiplyARGB(a, r, g, b)
		} else {
			colors[i] = PackARGB(a, r, g, b)
		}
	}

	for ; i < numPalette; i++ {
		colors[i] = PackARGB(0xFF, pal[i*3], pal[i*3+1], pal[i*3+2])
	}

	// See BUGGY IMAGE WORKAROUND above.
	if numPalette < 256 {
		colors[numPalette] = colors[numPalette-1]
	}

	c.colorTable = NewColorTable(colors)
	return true
}

// GetPixels decodes the whole image, interlaced or not.
func (c *pngCodec) GetPixels(dstInfo ImageInfo, dst []byte, rowBytes int, opts ...DecodeOption) Result {
	_ = applyDecodeOptions(opts)
	if r := c.prepareDecode(dstInfo, dst, rowBytes, c.isGraySource(), c.onRewind); r != ResultSuccess {
		return r
	}
	if r := c.initializeSwizzler(dstInfo, dst, rowBytes); r != ResultSuccess {
		return r
	}

	width := dstInfo.Width
	height := dstInfo.Height
	srcBpp := c.srcCfg.bytesPerPixel()

	opaqueAll := true
	if c.numberPasses > 1 {
		// Interlaced: assemble the whole deinterlaced source image, then
		// swizzle it in one pass.
		full := make([]byte, width*height*srcBpp)
		passRow := make([]byte, width*srcBpp)
		for p := 0; p < c.numberPasses; p++ {
			geom := c.reader.PassGeometry(p)
			pw, ph := c.reader.PassDims(p)
			if pw == 0 || ph == 0 {
				continue
			}
			for sy := 0; sy < ph; sy++ {
				raw, err := c.reader.ReadRow()
				if err != nil {
					return mapPngError(err)
				}
				c.transformRow(passRow, raw, pw)
				y := geom.YOffset + sy*geom.YFactor
				for sx := 0; sx < pw; sx++ {
					x := geom.XOffset + sx*geom.XFactor
					copy(full[(y*width+x)*srcBpp:(y*width+x+1)*srcBpp], passRow[sx*srcBpp:])
				}
			}
		}
		for y := 0; y < height; y++ {
			res := c.swiz.next(full[y*width*srcBpp:], y)
			opaqueAll = opaqueAll && res.isOpaque()
		}
	} else {
		srcRow := make([]byte, width*srcBpp)
		for y := 0; y < height; y++ {
			raw, err := c.reader.ReadRow()
			if err != nil {
				return mapPngError(err)
			}
			c.transformRow(srcRow, raw, width)
			res := c.swiz.next(srcRow, y)
			opaqueAll = opaqueAll && res.isOpaque()
		}
	}
	c.reallyHasAlpha = c.reallyHasAlpha || !opaqueAll

	c.finish()
	return ResultSuccess
}

// NewScanlineDecoder returns a row decoder for non-interlaced streams.
func (c *pngCodec) NewScanlineDecoder(dstInfo ImageInfo) (ScanlineDecoder, Result) {
	if !c.rewindIfNeeded(c.onRewind) {
		return nil, ResultCouldNotRewind
	}
	c.decoded = true
	if !dstInfo.SameDimensions(c.info) {
		return nil, ResultInvalidScale
	}
	if !conversionPossible(dstInfo, c.info, c.isGraySource()) {
		return nil, ResultInvalidConversion
	}
	// The destination is rebound per call; only the stride must be legal.
	if r := c.initializeSwizzler(dstInfo, nil, dstInfo.MinRowBytes()); r != ResultSuccess {
		return nil, r
	}
	if c.numberPasses > 1 {
		// Interlaced rows arrive out of order; scanline decoding cannot
		// deliver them incrementally.
		return nil, ResultUnimplemented
	}
	return &pngScanlineDecoder{
		codec:  c,
		srcRow: make([]byte, c.info.Width*c.srcCfg.bytesPerPixel()),
	}, ResultSuccess
}

// finish consumes the trailing chunks. Once every row has been delivered
// the image is complete; trailer defects are logged and swallowed.
func (c *pngCodec) finish() {
	if err := c.reader.ReadEnd(); err != nil {
		Logger().Debug("imgcodec: png trailer error", "err", err)
	}
	if err := c.reader.Close(); err != nil {
		Logger().Debug("imgcodec: png close error", "err", err)
	}
}

// transformRow expands one raw scanline of pixels samples into the resolved
// source config: palette indices to one byte per pixel, grayscale to 8-bit
// (alone or as RGB), 16-bit channels stripped to 8, and an opaque filler
// inserted after RGB triples.
func (c *pngCodec) transformRow(dst, raw []byte, pixels int) {
	depth := c.reader.BitDepth
	switch c.reader.ColorType {
	case pngio.ColorPalette:
		unpackIndices(dst, raw, pixels, depth)

	case pngio.ColorGray:
		if c.srcCfg == srcGray8 {
			unpackGray(dst, raw, pixels, depth)
			return
		}
		for i := 0; i < pixels; i++ {
			g := grayAt(raw, i, depth)
			o := i * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = g, g, g, 0xFF
		}

	case pngio.ColorGrayAlpha:
		step := 2
		if depth == 16 {
			step = 4
		}
		for i := 0; i < pixels; i++ {
			g := raw[i*step]
			a := raw[i*step+step/2]
			o := i * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = g, g, g, a
		}

	case pngio.ColorRGB:
		step := 1
		if depth == 16 {
			step = 2
		}
		for i := 0; i < pixels; i++ {
			s := i * 3 * step
			o := i * 4
			dst[o] = raw[s]
			dst[o+1] = raw[s+step]
			dst[o+2] = raw[s+2*step]
			dst[o+3] = 0xFF
		}

	case pngio.ColorRGBA:
		if depth == 8 {
			copy(dst[:pixels*4], raw)
			return
		}
		for i := 0; i < pixels; i++ {
			s := i * 8
			o := i * 4
			dst[o] = raw[s]
			dst[o+1] = raw[s+2]
			dst[o+2] = raw[s+4]
			dst[o+3] = raw[s+6]
		}
	}
}

// grayAt extracts the i-th gray sample at any legal depth, normalized to 8
// bits.
func grayAt(raw []byte, i, depth int) uint8 {
	switch depth {
	case 16:
		return raw[i*2]
	case 8:
		return raw[i]
	default:
		shift := 8 - depth - (i*depth)&7
		v := (raw[(i*depth)>>3] >> uint(shift)) & uint8(1<<depth-1)
		return uint8(uint32(v) * 0xFF / (1<<depth - 1))
	}
}

// unpackGray expands a packed grayscale row to one byte per pixel.
func unpackGray(dst, raw []byte, pixels, depth int) {
	for i := 0; i < pixels; i++ {
		dst[i] = grayAt(raw, i, depth)
	}
}

// unpackIndices expands packed sub-byte palette indices to one byte per
// pixel, keeping their numeric value.
func unpackIndices(dst, raw []byte, pixels, depth int) {
	if depth == 8 {
		copy(dst[:pixels], raw)
		return
	}
	mask := uint8(1<<depth - 1)
	for i := 0; i < pixels; i++ {
		bitPos := i * depth
		shift := 8 - depth - (bitPos & 7)
		dst[i] = (raw[bitPos>>3] >> uint(shift)) & mask
	}
}

// mapPngError converts a pngio failure into a decode result.
func mapPngError(err error) Result {
	if errors.Is(err, pngio.ErrTruncated) {
		return ResultIncompleteInput
	}
	return ResultInvalidInput
}
