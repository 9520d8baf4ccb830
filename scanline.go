package imgcodec

// pngScanlineDecoder reads consecutive rows of a non-interlaced PNG. It
// owns one source-row buffer and delegates swizzling to the parent codec's
// swizzler, rebinding the destination row on each call.
type pngScanlineDecoder struct {
	codec    *pngCodec
	srcRow   []byte
	hasAlpha bool
}

// GetScanlines decodes count consecutive rows into dst with stride
// rowBytes.
func (d *pngScanlineDecoder) GetScanlines(dst []byte, count, rowBytes int) Result {
	c := d.codec
	for i := 0; i < count; i++ {
		raw, err := c.reader.ReadRow()
		if err != nil {
			return mapPngError(err)
		}
		c.transformRow(d.srcRow, raw, c.info.Width)
		c.swiz.setDstRow(dst[i*rowBytes:])
		res := c.swiz.next(d.srcRow, 0)
		d.hasAlpha = d.hasAlpha || !res.isOpaque()
	}
	return ResultSuccess
}

// SkipScanlines decodes and discards count rows. The rows still pass
// through the inflate and filter stages; only swizzling is skipped.
func (d *pngScanlineDecoder) SkipScanlines(count int) Result {
	c := d.codec
	for i := 0; i < count; i++ {
		if _, err := c.reader.ReadRow(); err != nil {
			return mapPngError(err)
		}
	}
	return ResultSuccess
}

// Finish consumes the image trailer.
func (d *pngScanlineDecoder) Finish() {
	d.codec.finish()
}

// ReallyHasAlpha reports whether any delivered row held a non-opaque pixel.
func (d *pngScanlineDecoder) ReallyHasAlpha() bool {
	return d.hasAlpha
}
