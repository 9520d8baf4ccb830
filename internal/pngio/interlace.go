// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pngio

// InterlacePass describes one pass of an interlace pattern: the subsampling
// factors and the offsets of the first covered pixel.
type InterlacePass struct {
	XFactor int
	YFactor int
	XOffset int
	YOffset int
}

// Adam7Passes is the PNG Adam7 interlace pattern, in pass order.
var Adam7Passes = [7]InterlacePass{
	{8, 8, 0, 0},
	{8, 8, 4, 0},
	{4, 8, 0, 4},
	{4, 4, 2, 0},
	{2, 4, 0, 2},
	{2, 2, 1, 0},
	{1, 2, 0, 1},
}

// Dims returns the sub-image size of the pass over a width x height image.
// Small images produce empty passes; those carry no scanlines at all.
func (p InterlacePass) Dims(width, height int) (int, int) {
	w := 0
	if width > p.XOffset {
		w = (width - p.XOffset + p.XFactor - 1) / p.XFactor
	}
	h := 0
	if height > p.YOffset {
		h = (height - p.YOffset + p.YFactor - 1) / p.YFactor
	}
	return w, h
}
