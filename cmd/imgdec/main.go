// Command imgdec decodes a BMP, PNG, or ICO file with imgcodec and writes
// the pixels back out as PNG or BMP.
package main

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"github.com/gogpu/imgcodec"
)

var (
	flagOutput      string
	flagFormat      string
	flagPremultiply bool
	flagVerbose     bool
)

func main() {
	root := &cobra.Command{
		Use:   "imgdec <file>",
		Short: "Decode a BMP, PNG, or ICO image",
		Long: "imgdec decodes a BMP, PNG, or ICO image through imgcodec's own\n" +
			"pipeline and re-encodes the decoded pixels, which makes it a quick\n" +
			"way to eyeball what the decoder produced.",
		Args: cobra.ExactArgs(1),
		RunE: run,
	}
	root.Flags().StringVarP(&flagOutput, "output", "o", "out.png", "output file")
	root.Flags().StringVarP(&flagFormat, "format", "f", "png", "output format: png or bmp")
	root.Flags().BoolVar(&flagPremultiply, "premultiply", false, "decode with premultiplied alpha")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log decoder diagnostics")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		imgcodec.SetLogger(slog.Default())
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	codec, err := imgcodec.NewCodec(imgcodec.NewStream(f))
	if err != nil {
		return err
	}

	info := codec.Info()
	dstInfo := info
	switch {
	case flagPremultiply && info.AlphaType == imgcodec.AlphaTypeUnpremul:
		dstInfo = info.MakeAlphaType(imgcodec.AlphaTypePremul)
	case flagPremultiply:
		return fmt.Errorf("source has no independent alpha to premultiply")
	}

	rowBytes := dstInfo.MinRowBytes()
	dst := make([]byte, rowBytes*dstInfo.Height)
	if r := codec.GetPixels(dstInfo, dst, rowBytes, imgcodec.WithZeroInitialized()); r != imgcodec.ResultSuccess {
		return fmt.Errorf("decode failed: %v", r)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %v/%v, alpha used: %v\n",
		args[0], info.Width, info.Height, info.ColorType, dstInfo.AlphaType,
		codec.ReallyHasAlpha())

	// image.RGBA is premultiplied, image.NRGBA is not; pick the wrapper
	// matching what was decoded.
	rect := image.Rect(0, 0, dstInfo.Width, dstInfo.Height)
	var img image.Image
	if dstInfo.AlphaType == imgcodec.AlphaTypePremul {
		img = &image.RGBA{Pix: dst, Stride: rowBytes, Rect: rect}
	} else {
		img = &image.NRGBA{Pix: dst, Stride: rowBytes, Rect: rect}
	}

	out, err := os.Create(flagOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	switch strings.ToLower(flagFormat) {
	case "png":
		return png.Encode(out, img)
	case "bmp":
		return bmp.Encode(out, img)
	default:
		return fmt.Errorf("unknown output format %q", flagFormat)
	}
}
