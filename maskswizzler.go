package imgcodec

import "encoding/binary"

// maskSwizzler converts rows whose pixels are 16- or 32-bit little-endian
// words with channel extraction driven by a maskSet rather than a fixed
// layout. It is used for the BMP bit-mask formats.
type maskSwizzler struct {
	masks    *maskSet
	dstInfo  ImageInfo
	dst      []byte
	rowBytes int
	sampleSz int

	ri, gi, bi, ai int
	premul         bool

	// opaque forces alpha 0xFF regardless of the alpha mask. Set when the
	// destination alpha type is Opaque or when no alpha mask exists.
	opaque bool
}

// newMaskSwizzler validates the destination and returns a swizzler reading
// bitsPerPixel-wide samples (16 or 32).
func newMaskSwizzler(dstInfo ImageInfo, dst []byte, rowBytes int, masks *maskSet, bitsPerPixel int) (*maskSwizzler, error) {
	ri, gi, bi, ai, ok := dstChannelOffsets(dstInfo.ColorType)
	if !ok {
		return nil, errSwizzlerConfig
	}
	if bitsPerPixel != 16 && bitsPerPixel != 32 {
		return nil, errSwizzlerConfig
	}
	return &maskSwizzler{
		masks:    masks,
		dstInfo:  dstInfo,
		dst:      dst,
		rowBytes: rowBytes,
		sampleSz: bitsPerPixel / 8,
		ri:       ri,
		gi:       gi,
		bi:       bi,
		ai:       ai,
		premul:   dstInfo.AlphaType == AlphaTypePremul,
		opaque:   dstInfo.AlphaType == AlphaTypeOpaque || !masks.hasAlpha(),
	}, nil
}

// next converts one source row into destination row rowIndex.
func (s *maskSwizzler) next(src []byte, rowIndex int) resultAlpha {
	d := s.dst[rowIndex*s.rowBytes:]
	acc := newAlphaAccum()
	for x := 0; x < s.dstInfo.Width; x++ {
		var sample uint32
		if s.sampleSz == 2 {
			sample = uint32(binary.LittleEndian.Uint16(src[x*2:]))
		} else {
			sample = binary.LittleEndian.Uint32(src[x*4:])
		}
		r := s.masks.getRed(sample)
		g := s.masks.getGreen(sample)
		b := s.masks.getBlue(sample)
		a := uint8(0xFF)
		if !s.opaque {
			a = s.masks.getAlpha(sample)
			if s.premul {
				r = mulDiv255Round(r, a)
				g = mulDiv255Round(g, a)
				b = mulDiv255Round(b, a)
			}
		}
		o := x * 4
		d[o+s.ri] = r
		d[o+s.gi] = g
		d[o+s.bi] = b
		d[o+s.ai] = a
		acc.add(a)
	}
	return acc.result()
}
