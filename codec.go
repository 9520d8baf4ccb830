package imgcodec

import (
	"errors"
)

// Result is the outcome of a pixel decode call.
type Result int

const (
	// ResultSuccess means the full image was decoded.
	ResultSuccess Result = iota

	// ResultIncompleteInput means the input ended before the image did.
	// Whatever was written to the destination so far is left as-is.
	ResultIncompleteInput

	// ResultInvalidConversion means the requested destination color/alpha
	// pairing is not producible from this source.
	ResultInvalidConversion

	// ResultInvalidScale means the destination dimensions differ from the
	// source dimensions. The codecs never rescale.
	ResultInvalidScale

	// ResultInvalidInput means the input is malformed beyond recovery, or
	// the destination parameters are unusable.
	ResultInvalidInput

	// ResultCouldNotRewind means a repeated decode was requested on a
	// stream that cannot rewind.
	ResultCouldNotRewind

	// ResultUnimplemented means the requested mode is not supported, such
	// as scanline decoding of an interlaced PNG.
	ResultUnimplemented
)

// String returns the name of the result code.
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultIncompleteInput:
		return "IncompleteInput"
	case ResultInvalidConversion:
		return "InvalidConversion"
	case ResultInvalidScale:
		return "InvalidScale"
	case ResultInvalidInput:
		return "InvalidInput"
	case ResultCouldNotRewind:
		return "CouldNotRewind"
	case ResultUnimplemented:
		return "Unimplemented"
	default:
		return "Unknown"
	}
}

// Factory errors.
var (
	// ErrUnknownFormat is returned when the stream starts with none of the
	// recognized signatures.
	ErrUnknownFormat = errors.New("imgcodec: unrecognized image format")

	// ErrCouldNotRewind is returned when format sniffing cannot restore
	// the stream position.
	ErrCouldNotRewind = errors.New("imgcodec: stream cannot rewind")
)

// Codec decodes one image from one stream. A Codec is not safe for
// concurrent use; independent Codec instances over independent streams are.
type Codec interface {
	// Info returns the parsed image geometry with the codec's suggested
	// destination color and alpha types.
	Info() ImageInfo

	// GetPixels decodes the whole image into dst, row-major with the given
	// stride. dstInfo must match the source dimensions; the color/alpha
	// pairing must be reachable from the source (same alpha type, or
	// premultiplied destination from an unpremultiplied source).
	GetPixels(dstInfo ImageInfo, dst []byte, rowBytes int, opts ...DecodeOption) Result

	// NewScanlineDecoder returns a row-at-a-time decoder, or
	// ResultUnimplemented when the codec cannot stream rows (BMP, or an
	// interlaced PNG).
	NewScanlineDecoder(dstInfo ImageInfo) (ScanlineDecoder, Result)

	// ReallyHasAlpha reports whether the last completed decode produced at
	// least one non-opaque pixel.
	ReallyHasAlpha() bool
}

// ScanlineDecoder reads consecutive rows of a non-interlaced image.
type ScanlineDecoder interface {
	// GetScanlines decodes count consecutive rows into dst with stride
	// rowBytes.
	GetScanlines(dst []byte, count, rowBytes int) Result

	// SkipScanlines decodes and discards count rows.
	SkipScanlines(count int) Result

	// Finish consumes the image trailer. Errors past the last row do not
	// affect rows already delivered.
	Finish()

	// ReallyHasAlpha reports whether any delivered row held a non-opaque
	// pixel.
	ReallyHasAlpha() bool
}

// NewCodec sniffs the stream signature and returns the matching codec with
// its header fully parsed. The stream must be positioned at the first byte
// of the image and must support one Rewind for the sniff itself.
func NewCodec(s Stream) (Codec, error) {
	var sig [8]byte
	n := s.Read(sig[:])
	if !s.Rewind() {
		return nil, ErrCouldNotRewind
	}
	switch {
	case n >= 8 && string(sig[:8]) == pngSignature:
		return newPngCodec(s)
	case n >= 2 && sig[0] == 'B' && sig[1] == 'M':
		return newBmpCodec(s, false)
	case n >= 4 && isIcoSignature(sig[:4]):
		return newIcoCodec(s)
	default:
		return nil, ErrUnknownFormat
	}
}

// codecBase carries the state shared by both codecs.
type codecBase struct {
	info           ImageInfo
	stream         Stream
	decoded        bool
	reallyHasAlpha bool
}

// Info returns the parsed image info.
func (c *codecBase) Info() ImageInfo { return c.info }

// ReallyHasAlpha reports whether the last decode saw a non-opaque pixel.
func (c *codecBase) ReallyHasAlpha() bool { return c.reallyHasAlpha }

// rewindIfNeeded prepares the stream for a decode. The first decode uses
// the stream as positioned by header parsing; later decodes rewind the
// stream and re-run the codec's onRewind to reposition past the header.
func (c *codecBase) rewindIfNeeded(onRewind func() bool) bool {
	if !c.decoded {
		return true
	}
	if !c.stream.Rewind() {
		return false
	}
	return onRewind()
}

// prepareDecode runs the shared GetPixels preconditions.
func (c *codecBase) prepareDecode(dstInfo ImageInfo, dst []byte, rowBytes int, allowAlpha8 bool, onRewind func() bool) Result {
	if !c.rewindIfNeeded(onRewind) {
		return ResultCouldNotRewind
	}
	c.decoded = true
	c.reallyHasAlpha = false
	if !dstInfo.SameDimensions(c.info) {
		return ResultInvalidScale
	}
	if !conversionPossible(dstInfo, c.info, allowAlpha8) {
		return ResultInvalidConversion
	}
	min := dstInfo.MinRowBytes()
	if min == 0 || rowBytes < min || len(dst) < (dstInfo.Height-1)*rowBytes+min {
		return ResultInvalidInput
	}
	return ResultSuccess
}

// conversionPossible gates destination color/alpha pairings. The only legal
// cross-alpha conversion is an unpremultiplied source into a premultiplied
// destination. allowAlpha8 admits Alpha8 destinations (grayscale PNG only).
func conversionPossible(dst, src ImageInfo, allowAlpha8 bool) bool {
	if dst.Profile != src.Profile {
		return false
	}
	switch dst.ColorType {
	case ColorTypeRGBA8888, ColorTypeBGRA8888:
		return dst.AlphaType == src.AlphaType ||
			(dst.AlphaType == AlphaTypePremul && src.AlphaType == AlphaTypeUnpremul)
	case ColorTypeAlpha8:
		return allowAlpha8
	default:
		return false
	}
}
