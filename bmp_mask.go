package imgcodec

// decodeMask handles the 16- and 32-bit bit-mask formats. The whole source
// image is buffered so the rows can be re-swizzled if the first pass proves
// the alpha channel to be entirely zero.
func (c *bmpCodec) decodeMask(dstInfo ImageInfo, dst []byte, dstRowBytes int) Result {
	width := dstInfo.Width
	height := dstInfo.Height
	rowBytes := align4(bmpRowBytes(width, c.bitsPerPixel))

	srcBuf := make([]byte, height*rowBytes)

	swiz, err := newMaskSwizzler(dstInfo, dst, dstRowBytes, c.masks, c.bitsPerPixel)
	if err != nil {
		return ResultInvalidInput
	}

	transparent := true
	opaque := true
	for y := 0; y < height; y++ {
		srcRow := srcBuf[y*rowBytes : (y+1)*rowBytes]
		if c.stream.Read(srcRow) != rowBytes {
			Logger().Warn("imgcodec: incomplete bmp pixel data", "row", y)
			return ResultIncompleteInput
		}
		row := y
		if c.rowOrder == bmpBottomUp {
			row = height - 1 - y
		}
		res := swiz.next(srcRow, row)
		transparent = transparent && res.isTransparent()
		opaque = opaque && res.isOpaque()
	}
	c.reallyHasAlpha = !opaque

	// Some fully transparent images are authored with a zeroed alpha
	// channel and expect to render opaque. Re-run the rows as opaque.
	if transparent {
		opaqueSwiz, err := newMaskSwizzler(dstInfo.MakeAlphaType(AlphaTypeOpaque),
			dst, dstRowBytes, c.masks, c.bitsPerPixel)
		if err != nil {
			return ResultInvalidInput
		}
		for y := 0; y < height; y++ {
			row := y
			if c.rowOrder == bmpBottomUp {
				row = height - 1 - y
			}
			opaqueSwiz.next(srcBuf[y*rowBytes:(y+1)*rowBytes], row)
		}
		c.reallyHasAlpha = false
	}

	return ResultSuccess
}
