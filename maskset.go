package imgcodec

import (
	"errors"
	"math/bits"
)

// inputMasks carries the raw per-channel bit masks read from a BMP header.
// A zero mask means the channel is absent; a zero alpha mask means every
// decoded pixel is opaque.
type inputMasks struct {
	red   uint32
	green uint32
	blue  uint32
	alpha uint32
}

var (
	errMaskNotContiguous = errors.New("imgcodec: bit mask has a split bit run")
	errMaskOverlap       = errors.New("imgcodec: bit masks overlap")
	errMaskRange         = errors.New("imgcodec: bit mask exceeds sample width")
)

// maskChannel holds the derived extraction parameters for one channel: the
// right shift to the field's low bit and the field width in bits.
type maskChannel struct {
	mask  uint32
	shift uint
	size  uint
}

func makeMaskChannel(mask uint32) (maskChannel, error) {
	if mask == 0 {
		return maskChannel{}, nil
	}
	shift := uint(bits.TrailingZeros32(mask))
	run := mask >> shift
	if run&(run+1) != 0 {
		return maskChannel{}, errMaskNotContiguous
	}
	return maskChannel{mask: mask, shift: shift, size: uint(bits.OnesCount32(mask))}, nil
}

// get extracts the channel from a sample and normalizes it to 8 bits.
// Fields narrower than 8 bits are scaled by 255/(2^size-1); wider fields
// are truncated to their high 8 bits.
func (c maskChannel) get(sample uint32) uint8 {
	if c.mask == 0 {
		return 0
	}
	v := (sample & c.mask) >> c.shift
	switch {
	case c.size < 8:
		return uint8(v * 0xFF / (1<<c.size - 1))
	case c.size > 8:
		return uint8(v >> (c.size - 8))
	default:
		return uint8(v)
	}
}

// maskSet is the validated, normalized set of per-channel bit masks used by
// the BMP bit-mask pixel engine. A zero alpha mask means "no alpha
// channel": getAlpha then reports fully opaque.
type maskSet struct {
	red   maskChannel
	green maskChannel
	blue  maskChannel
	alpha maskChannel
}

// newMaskSet validates the input masks against the sample width and derives
// the extraction parameters. It fails when a mask has non-contiguous 1-bits,
// when two masks overlap, or when a mask lies outside [0, 2^bitsPerPixel).
func newMaskSet(in inputMasks, bitsPerPixel int) (*maskSet, error) {
	if bitsPerPixel < 32 {
		limit := uint32(1)<<uint(bitsPerPixel) - 1
		if in.red > limit || in.green > limit || in.blue > limit || in.alpha > limit {
			return nil, errMaskRange
		}
	}
	if in.red&in.green != 0 || in.red&in.blue != 0 || in.green&in.blue != 0 ||
		in.alpha&(in.red|in.green|in.blue) != 0 {
		return nil, errMaskOverlap
	}

	m := &maskSet{}
	var err error
	if m.red, err = makeMaskChannel(in.red); err != nil {
		return nil, err
	}
	if m.green, err = makeMaskChannel(in.green); err != nil {
		return nil, err
	}
	if m.blue, err = makeMaskChannel(in.blue); err != nil {
		return nil, err
	}
	if m.alpha, err = makeMaskChannel(in.alpha); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *maskSet) getRed(sample uint32) uint8   { return m.red.get(sample) }
func (m *maskSet) getGreen(sample uint32) uint8 { return m.green.get(sample) }
func (m *maskSet) getBlue(sample uint32) uint8  { return m.blue.get(sample) }

// getAlpha returns the normalized alpha, or 0xFF when no alpha mask exists.
func (m *maskSet) getAlpha(sample uint32) uint8 {
	if m.alpha.mask == 0 {
		return 0xFF
	}
	return m.alpha.get(sample)
}

// hasAlpha reports whether an alpha mask is present.
func (m *maskSet) hasAlpha() bool { return m.alpha.mask != 0 }

// alphaMask returns the raw alpha mask bits.
func (m *maskSet) alphaMask() uint32 { return m.alpha.mask }
