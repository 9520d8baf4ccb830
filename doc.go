// Package imgcodec decodes BMP and PNG raster images, including BMP streams
// embedded in ICO containers, into caller-supplied 32-bit RGBA or BGRA
// pixel buffers.
//
// # Overview
//
// imgcodec is a decode-only library for the GoGPU ecosystem. It owns the
// format-parsing and pixel-swizzling pipeline: header validation, bit-mask
// color extraction, 4/8/24-bit RLE decoding, paletted expansion, bottom-up
// and top-down row ordering, ICO AND-mask application, and interlaced and
// non-interlaced PNG row decoding. It does not encode, rescale, or convert
// color spaces beyond alpha premultiplication.
//
// # Quick Start
//
//	f, _ := os.Open("sprite.bmp")
//	defer f.Close()
//
//	codec, err := imgcodec.NewCodec(imgcodec.NewStream(f))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info := codec.Info()
//	dst := make([]byte, info.MinRowBytes()*info.Height)
//	if r := codec.GetPixels(info, dst, info.MinRowBytes()); r != imgcodec.ResultSuccess {
//	    log.Fatalf("decode failed: %v", r)
//	}
//
// # Destinations
//
// The canonical destination is 32-bit RGBA or BGRA with a premultiplied,
// unpremultiplied, or opaque alpha type. The only cross-alpha conversion
// performed is unpremultiplied source into premultiplied destination.
// Grayscale PNGs additionally decode into Alpha8 destinations.
//
// # Streaming
//
// Non-interlaced PNGs can be decoded row-at-a-time through a
// ScanlineDecoder. BMP and interlaced PNG decode whole images only.
//
// # Concurrency
//
// A Codec instance is single-threaded; independent instances over
// independent streams do not share state.
package imgcodec
