package imgcodec

// DecodeOption configures a single GetPixels call.
//
// Example:
//
//	// The caller just allocated dst with make, so it is zero-filled:
//	result := codec.GetPixels(dstInfo, dst, rowBytes, imgcodec.WithZeroInitialized())
type DecodeOption func(*decodeOptions)

// decodeOptions holds optional per-decode configuration.
type decodeOptions struct {
	zeroInitialized bool
}

// defaultDecodeOptions returns the default decode options.
func defaultDecodeOptions() decodeOptions {
	return decodeOptions{}
}

// WithZeroInitialized declares that the destination buffer is already
// zero-filled. Engines that would otherwise clear the buffer (the BMP RLE
// engine) skip the clear.
func WithZeroInitialized() DecodeOption {
	return func(o *decodeOptions) {
		o.zeroInitialized = true
	}
}

func applyDecodeOptions(opts []DecodeOption) decodeOptions {
	o := defaultDecodeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
