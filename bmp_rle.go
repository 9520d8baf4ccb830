package imgcodec

// RLE escape opcodes. An escape's second byte selects end-of-line,
// end-of-file, a cursor delta, or (for values >= 3) an absolute run.
const (
	rleEscape = 0
	rleEOL    = 0
	rleEOF    = 1
	rleDelta  = 2
)

// rleState is the cursor of the RLE opcode interpreter: the pixel position
// and the read position inside the buffered opcode stream.
type rleState struct {
	x, y     int
	currByte int
}

// decodeRLE handles RLE4, RLE8 and the RLE24 variant. The opcode stream is
// buffered whole; decoding is all-at-once rather than row-at-a-time because
// deltas and end-of-line opcodes move the cursor arbitrarily.
func (c *bmpCodec) decodeRLE(dstInfo ImageInfo, dst []byte, dstRowBytes int, o decodeOptions) Result {
	width := dstInfo.Width
	height := dstInfo.Height

	buf := make([]byte, c.rleBytes)
	totalBytes := c.stream.Read(buf)
	if totalBytes < c.rleBytes {
		Logger().Warn("imgcodec: incomplete RLE file", "expected", c.rleBytes, "got", totalBytes)
	}
	if totalBytes <= 0 {
		Logger().Warn("imgcodec: could not read RLE image data")
		return ResultInvalidInput
	}

	// Pixels never touched by an opcode must read as transparent black.
	if !o.zeroInitialized {
		clear(dst[:(height-1)*dstRowBytes+dstInfo.MinRowBytes()])
	}

	st := rleState{}
	for {
		if totalBytes-st.currByte < 2 {
			Logger().Warn("imgcodec: incomplete RLE input")
			return c.finishRLE(dstInfo, dst, dstRowBytes, ResultIncompleteInput)
		}
		flag := buf[st.currByte]
		task := buf[st.currByte+1]
		st.currByte += 2

		// Past the bottom of the image only an EOF opcode is legal.
		if st.y >= height && (flag != rleEscape || task != rleEOF) {
			Logger().Warn("imgcodec: RLE input ran past the image")
			return c.finishRLE(dstInfo, dst, dstRowBytes, ResultIncompleteInput)
		}

		if flag != rleEscape {
			if r := c.rleRun(dstInfo, dst, dstRowBytes, buf, totalBytes, &st, int(flag), task); r != ResultSuccess {
				return c.finishRLE(dstInfo, dst, dstRowBytes, r)
			}
			continue
		}

		switch task {
		case rleEOL:
			st.x = 0
			st.y++
		case rleEOF:
			return c.finishRLE(dstInfo, dst, dstRowBytes, ResultSuccess)
		case rleDelta:
			if totalBytes-st.currByte < 2 {
				Logger().Warn("imgcodec: incomplete RLE delta")
				return c.finishRLE(dstInfo, dst, dstRowBytes, ResultIncompleteInput)
			}
			dx := int(buf[st.currByte])
			dy := int(buf[st.currByte+1])
			st.currByte += 2
			st.x += dx
			st.y += dy
			// Landing exactly on the far edge is legal; going past it is
			// not.
			if st.x > width || st.y > height {
				Logger().Warn("imgcodec: RLE delta out of bounds")
				return c.finishRLE(dstInfo, dst, dstRowBytes, ResultIncompleteInput)
			}
		default:
			// An absolute run of task literal pixels.
			if r := c.rleAbsolute(dstInfo, dst, dstRowBytes, buf, totalBytes, &st, int(task)); r != ResultSuccess {
				return c.finishRLE(dstInfo, dst, dstRowBytes, r)
			}
		}
	}
}

// rleAbsolute copies numPixels literal pixels from the opcode stream. The
// encoded bytes are padded to a 16-bit boundary before the next opcode.
func (c *bmpCodec) rleAbsolute(dstInfo ImageInfo, dst []byte, dstRowBytes int, buf []byte, totalBytes int, st *rleState, numPixels int) Result {
	width := dstInfo.Width
	rowBytes := bmpRowBytes(numPixels, c.bitsPerPixel)
	if st.x+numPixels > width || totalBytes-st.currByte < align2(rowBytes) {
		Logger().Warn("imgcodec: invalid RLE absolute run")
		return ResultIncompleteInput
	}

	for numPixels > 0 {
		switch c.bitsPerPixel {
		case 4:
			val := buf[st.currByte]
			st.currByte++
			c.setRLEPixel(dstInfo, dst, dstRowBytes, st.x, st.y, val>>4)
			st.x++
			numPixels--
			if numPixels != 0 {
				c.setRLEPixel(dstInfo, dst, dstRowBytes, st.x, st.y, val&0xF)
				st.x++
				numPixels--
			}
		case 8:
			c.setRLEPixel(dstInfo, dst, dstRowBytes, st.x, st.y, buf[st.currByte])
			st.currByte++
			st.x++
			numPixels--
		case 24:
			blue := buf[st.currByte]
			green := buf[st.currByte+1]
			red := buf[st.currByte+2]
			st.currByte += 3
			c.setRLE24Pixel(dstInfo, dst, dstRowBytes, st.x, st.y, red, green, blue)
			st.x++
			numPixels--
		default:
			return ResultInvalidInput
		}
	}

	// An odd run length leaves a padding byte before the next opcode.
	if rowBytes != align2(rowBytes) {
		st.currByte++
	}
	return ResultSuccess
}

// rleRun repeats count pixels of one encoded color. Runs that would cross
// the right edge are clipped to it.
func (c *bmpCodec) rleRun(dstInfo ImageInfo, dst []byte, dstRowBytes int, buf []byte, totalBytes int, st *rleState, count int, task uint8) Result {
	width := dstInfo.Width
	endX := st.x + count
	if endX > width {
		endX = width
	}

	if c.bitsPerPixel == 24 {
		// In RLE24 the second opcode byte is the blue channel; two more
		// bytes complete the color.
		if totalBytes-st.currByte < 2 {
			Logger().Warn("imgcodec: incomplete RLE24 run")
			return ResultIncompleteInput
		}
		blue := task
		green := buf[st.currByte]
		red := buf[st.currByte+1]
		st.currByte += 2
		for st.x < endX {
			c.setRLE24Pixel(dstInfo, dst, dstRowBytes, st.x, st.y, red, green, blue)
			st.x++
		}
		return ResultSuccess
	}

	// RLE8 repeats one index; RLE4 alternates the high and low nibble,
	// starting high.
	indices := [2]uint8{task, task}
	if c.bitsPerPixel == 4 {
		indices[0] >>= 4
		indices[1] &= 0xF
	}
	for which := 0; st.x < endX; st.x++ {
		c.setRLEPixel(dstInfo, dst, dstRowBytes, st.x, st.y, indices[which])
		which ^= 1
	}
	return ResultSuccess
}

// setRLEPixel writes one palette-indexed pixel, honoring the row order.
func (c *bmpCodec) setRLEPixel(dstInfo ImageInfo, dst []byte, dstRowBytes int, x, y int, index uint8) {
	row := y
	if c.rowOrder == bmpBottomUp {
		row = dstInfo.Height - y - 1
	}
	col := c.colorTable.At(int(index))
	ri, gi, bi, ai, _ := dstChannelOffsets(dstInfo.ColorType)
	o := row*dstRowBytes + x*4
	dst[o+ri] = col.R()
	dst[o+gi] = col.G()
	dst[o+bi] = col.B()
	dst[o+ai] = col.A()
}

// setRLE24Pixel writes one opaque direct-color pixel, honoring the row
// order.
func (c *bmpCodec) setRLE24Pixel(dstInfo ImageInfo, dst []byte, dstRowBytes int, x, y int, red, green, blue uint8) {
	row := y
	if c.rowOrder == bmpBottomUp {
		row = dstInfo.Height - y - 1
	}
	ri, gi, bi, ai, _ := dstChannelOffsets(dstInfo.ColorType)
	o := row*dstRowBytes + x*4
	dst[o+ri] = red
	dst[o+gi] = green
	dst[o+bi] = blue
	dst[o+ai] = 0xFF
}

// finishRLE computes the alpha summary after the opcode loop ends. Written
// pixels carry palette or direct alpha; skipped pixels stayed transparent
// black, so a scan over the destination is exact.
func (c *bmpCodec) finishRLE(dstInfo ImageInfo, dst []byte, dstRowBytes int, r Result) Result {
	_, _, _, ai, _ := dstChannelOffsets(dstInfo.ColorType)
	for y := 0; y < dstInfo.Height; y++ {
		rowStart := y * dstRowBytes
		for x := 0; x < dstInfo.Width; x++ {
			if dst[rowStart+x*4+ai] != 0xFF {
				c.reallyHasAlpha = true
				return r
			}
		}
	}
	c.reallyHasAlpha = false
	return r
}
