package imgcodec

import "errors"

// srcConfig declares the pixel layout of one source row handed to a
// swizzler. Index and gray configs index a color table or carry a single
// channel; the rest are fixed byte layouts.
type srcConfig uint8

const (
	srcUnknown srcConfig = iota
	srcIndex1
	srcIndex2
	srcIndex4
	srcIndex8
	srcGray8
	srcBGR24
	srcBGRX32
	srcBGRA32
	srcRGB24
	srcRGBX32
	srcRGBA32
)

// bitsPerPixel returns the source bits per pixel for the config.
func (c srcConfig) bitsPerPixel() int {
	switch c {
	case srcIndex1:
		return 1
	case srcIndex2:
		return 2
	case srcIndex4:
		return 4
	case srcIndex8, srcGray8:
		return 8
	case srcBGR24, srcRGB24:
		return 24
	case srcBGRX32, srcBGRA32, srcRGBX32, srcRGBA32:
		return 32
	default:
		return 0
	}
}

// bytesPerPixel returns the source bytes per pixel, rounding sub-byte
// configs up to one byte.
func (c srcConfig) bytesPerPixel() int {
	bits := c.bitsPerPixel()
	return (bits + 7) / 8
}

// resultAlpha summarizes the alpha content of one produced destination row.
type resultAlpha uint8

const (
	// alphaOpaque means every alpha byte in the row is 0xFF.
	alphaOpaque resultAlpha = iota

	// alphaTransparent means every alpha byte in the row is 0x00.
	alphaTransparent

	// alphaTranslucent means the row holds a mix of alpha values.
	alphaTranslucent
)

func (r resultAlpha) isOpaque() bool      { return r == alphaOpaque }
func (r resultAlpha) isTransparent() bool { return r == alphaTransparent }

// alphaAccum folds per-pixel alpha bytes into a row-level resultAlpha.
type alphaAccum struct {
	allFF   bool
	allZero bool
}

func newAlphaAccum() alphaAccum { return alphaAccum{allFF: true, allZero: true} }

func (a *alphaAccum) add(alpha uint8) {
	a.allFF = a.allFF && alpha == 0xFF
	a.allZero = a.allZero && alpha == 0x00
}

func (a alphaAccum) result() resultAlpha {
	switch {
	case a.allFF:
		return alphaOpaque
	case a.allZero:
		return alphaTransparent
	default:
		return alphaTranslucent
	}
}

var (
	errSwizzlerConfig = errors.New("imgcodec: unsupported swizzler configuration")
	errSwizzlerTable  = errors.New("imgcodec: indexed source requires a color table")
)

// dstChannelOffsets returns the byte offsets of R, G, B, A within one
// destination pixel for the given 32-bit color type.
func dstChannelOffsets(ct ColorType) (ri, gi, bi, ai int, ok bool) {
	switch ct {
	case ColorTypeRGBA8888:
		return 0, 1, 2, 3, true
	case ColorTypeBGRA8888:
		return 2, 1, 0, 3, true
	default:
		return 0, 0, 0, 0, false
	}
}

// swizzler converts one source row of a declared srcConfig into the
// destination row in the destination config, honoring premultiplication.
// It reports per row whether any non-opaque pixel was produced.
type swizzler struct {
	cfg      srcConfig
	table    *ColorTable
	dstInfo  ImageInfo
	dst      []byte
	rowBytes int

	ri, gi, bi, ai int
	premul         bool
}

// newSwizzler validates the source/destination pairing and returns a
// swizzler writing into dst with the given stride. dst may be nil when the
// caller rebinds rows through setDstRow before the first next call.
func newSwizzler(cfg srcConfig, table *ColorTable, dstInfo ImageInfo, dst []byte, rowBytes int) (*swizzler, error) {
	s := &swizzler{
		cfg:      cfg,
		table:    table,
		dstInfo:  dstInfo,
		dst:      dst,
		rowBytes: rowBytes,
		premul:   dstInfo.AlphaType == AlphaTypePremul,
	}

	switch cfg {
	case srcIndex1, srcIndex2, srcIndex4, srcIndex8:
		if table == nil {
			return nil, errSwizzlerTable
		}
	case srcGray8:
		if dstInfo.ColorType != ColorTypeAlpha8 {
			return nil, errSwizzlerConfig
		}
		return s, nil
	case srcBGR24, srcBGRX32, srcBGRA32, srcRGB24, srcRGBX32, srcRGBA32:
	default:
		return nil, errSwizzlerConfig
	}

	ri, gi, bi, ai, ok := dstChannelOffsets(dstInfo.ColorType)
	if !ok {
		return nil, errSwizzlerConfig
	}
	s.ri, s.gi, s.bi, s.ai = ri, gi, bi, ai
	return s, nil
}

// setDstRow rebinds the destination so that the next call with row index 0
// writes into d. Used by the scanline decoder.
func (s *swizzler) setDstRow(d []byte) {
	s.dst = d
}

// next converts one source row into destination row rowIndex.
func (s *swizzler) next(src []byte, rowIndex int) resultAlpha {
	d := s.dst[rowIndex*s.rowBytes:]
	return s.swizzleRow(d, src)
}

func (s *swizzler) swizzleRow(d, src []byte) resultAlpha {
	w := s.dstInfo.Width
	switch s.cfg {
	case srcIndex1, srcIndex2, srcIndex4, srcIndex8:
		return s.rowIndex(d, src, w)
	case srcGray8:
		return s.rowGray8(d, src, w)
	case srcBGR24:
		return s.rowRGB(d, src, w, 2, 1, 0)
	case srcRGB24:
		return s.rowRGB(d, src, w, 0, 1, 2)
	case srcBGRX32:
		return s.rowRGBX(d, src, w, 2, 1, 0)
	case srcRGBX32:
		return s.rowRGBX(d, src, w, 0, 1, 2)
	case srcBGRA32:
		return s.rowRGBA(d, src, w, 2, 1, 0)
	case srcRGBA32:
		return s.rowRGBA(d, src, w, 0, 1, 2)
	default:
		return alphaTranslucent
	}
}

// rowIndex expands 1/2/4/8-bit palette indices, most significant bits
// first. Table entries were packed honoring the destination alpha type, so
// no further premultiplication happens here.
func (s *swizzler) rowIndex(d, src []byte, w int) resultAlpha {
	bits := s.cfg.bitsPerPixel()
	mask := uint8(1<<bits - 1)
	acc := newAlphaAccum()
	for x := 0; x < w; x++ {
		bitPos := x * bits
		shift := 8 - bits - (bitPos & 7)
		idx := (src[bitPos>>3] >> shift) & mask
		c := s.table.At(int(idx))
		o := x * 4
		d[o+s.ri] = c.R()
		d[o+s.gi] = c.G()
		d[o+s.bi] = c.B()
		d[o+s.ai] = c.A()
		acc.add(c.A())
	}
	return acc.result()
}

func (s *swizzler) rowGray8(d, src []byte, w int) resultAlpha {
	acc := newAlphaAccum()
	for x := 0; x < w; x++ {
		d[x] = src[x]
		acc.add(src[x])
	}
	return acc.result()
}

func (s *swizzler) rowRGB(d, src []byte, w, ro, go_, bo int) resultAlpha {
	for x := 0; x < w; x++ {
		si := x * 3
		o := x * 4
		d[o+s.ri] = src[si+ro]
		d[o+s.gi] = src[si+go_]
		d[o+s.bi] = src[si+bo]
		d[o+s.ai] = 0xFF
	}
	return alphaOpaque
}

func (s *swizzler) rowRGBX(d, src []byte, w, ro, go_, bo int) resultAlpha {
	for x := 0; x < w; x++ {
		si := x * 4
		o := x * 4
		d[o+s.ri] = src[si+ro]
		d[o+s.gi] = src[si+go_]
		d[o+s.bi] = src[si+bo]
		d[o+s.ai] = 0xFF
	}
	return alphaOpaque
}

func (s *swizzler) rowRGBA(d, src []byte, w, ro, go_, bo int) resultAlpha {
	acc := newAlphaAccum()
	for x := 0; x < w; x++ {
		si := x * 4
		o := x * 4
		a := src[si+3]
		r, g, b := src[si+ro], src[si+go_], src[si+bo]
		if s.premul {
			r = mulDiv255Round(r, a)
			g = mulDiv255Round(g, a)
			b = mulDiv255Round(b, a)
		}
		d[o+s.ri] = r
		d[o+s.gi] = g
		d[o+s.bi] = b
		d[o+s.ai] = a
		acc.add(a)
	}
	return acc.result()
}
