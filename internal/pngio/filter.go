// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pngio

import "fmt"

// Filter types, as per the PNG spec.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
)

// unfilterRow reverses the per-scanline filter in place. cr and pr hold the
// current and previous raw scanlines, each prefixed with the filter byte;
// bpp is the filter's pixel distance in whole bytes (at least 1).
func unfilterRow(cr, pr []byte, bpp int) error {
	cdat := cr[1:]
	pdat := pr[1:]
	switch cr[0] {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += cdat[i-bpp]
		}
	case ftUp:
		for i, p := range pdat {
			cdat[i] += p
		}
	case ftAverage:
		// The first bpp bytes have no byte to the left.
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bpp]) + int(pdat[i])) / 2)
		}
	case ftPaeth:
		filterPaeth(cdat, pdat, bpp)
	default:
		return fmt.Errorf("%w: filter type %d", ErrFormat, cr[0])
	}
	return nil
}

// filterPaeth applies the Paeth predictor in place.
func filterPaeth(cdat, pdat []byte, bpp int) {
	var a, c int
	for i := 0; i < bpp; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bpp {
			b := int(pdat[j])
			pa := b - c
			pb := a - c
			pc := abs(pa + pb)
			pa = abs(pa)
			pb = abs(pb)
			if pa <= pb && pa <= pc {
				// a is the nearest predictor
			} else if pb <= pc {
				a = b
			} else {
				a = c
			}
			a += int(cdat[j])
			a &= 0xFF
			cdat[j] = uint8(a)
			c = b
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
