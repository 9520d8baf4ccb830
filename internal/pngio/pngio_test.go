// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pngio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"testing"
)

func chunk(name string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload)+4)
	binary.BigEndian.PutUint32(buf[0:], uint32(len(payload)))
	copy(buf[4:8], name)
	copy(buf[8:], payload)
	binary.BigEndian.PutUint32(buf[8+len(payload):], crc32.ChecksumIEEE(buf[4:8+len(payload)]))
	return buf
}

func ihdr(width, height, depth, colorType, interlace int) []byte {
	p := make([]byte, 13)
	binary.BigEndian.PutUint32(p[0:], uint32(width))
	binary.BigEndian.PutUint32(p[4:], uint32(height))
	p[8] = byte(depth)
	p[9] = byte(colorType)
	p[12] = byte(interlace)
	return chunk("IHDR", p)
}

func deflate(raw []byte) []byte {
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	zw.Write(raw)
	zw.Close()
	return z.Bytes()
}

func pngFile(chunks ...[]byte) []byte {
	var f bytes.Buffer
	f.WriteString(Signature)
	for _, c := range chunks {
		f.Write(c)
	}
	return f.Bytes()
}

func TestReaderParsesHeader(t *testing.T) {
	plte := []byte{1, 2, 3, 4, 5, 6}
	trns := []byte{0x80}
	file := pngFile(
		ihdr(3, 2, 8, ColorPalette, 0),
		chunk("PLTE", plte),
		chunk("tRNS", trns),
		chunk("IDAT", deflate(make([]byte, 2*(1+3)))),
		chunk("IEND", nil),
	)
	r, err := NewReader(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if r.Width != 3 || r.Height != 2 || r.BitDepth != 8 || r.ColorType != ColorPalette {
		t.Fatalf("header = %+v", r)
	}
	if !bytes.Equal(r.Palette, plte) || !bytes.Equal(r.Trans, trns) {
		t.Fatalf("palette/trans = %v %v", r.Palette, r.Trans)
	}
	if r.Interlace {
		t.Fatal("interlace = true")
	}
}

func TestReaderSkipsAncillaryChunks(t *testing.T) {
	file := pngFile(
		ihdr(1, 1, 8, ColorGray, 0),
		chunk("gAMA", []byte{0, 1, 134, 160}),
		chunk("tEXt", []byte("comment\x00hello")),
		chunk("IDAT", deflate([]byte{0, 0x42})),
		chunk("IEND", nil),
	)
	r, err := NewReader(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	row, err := r.ReadRow()
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != 1 || row[0] != 0x42 {
		t.Fatalf("row = %v", row)
	}
	if err := r.ReadEnd(); err != nil {
		t.Fatalf("ReadEnd: %v", err)
	}
}

func TestReaderRowsAcrossIdatBoundaries(t *testing.T) {
	// The 2-row gray image's deflate stream is split over three IDAT
	// chunks at awkward boundaries.
	raw := []byte{0, 0x11, 0x22, 2, 0x33, 0x44} // filters None then Up
	z := deflate(raw)
	file := pngFile(
		ihdr(2, 2, 8, ColorGray, 0),
		chunk("IDAT", z[:1]),
		chunk("IDAT", z[1:5]),
		chunk("IDAT", z[5:]),
		chunk("IEND", nil),
	)
	r, err := NewReader(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	row1, err := r.ReadRow()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(row1, []byte{0x11, 0x22}) {
		t.Fatalf("row1 = %v", row1)
	}
	row2, err := r.ReadRow()
	if err != nil {
		t.Fatal(err)
	}
	// Up filter adds the previous row.
	if !bytes.Equal(row2, []byte{0x44, 0x66}) {
		t.Fatalf("row2 = %v", row2)
	}
	if _, err := r.ReadRow(); err != io.EOF {
		t.Fatalf("extra row err = %v", err)
	}
	if err := r.ReadEnd(); err != nil {
		t.Fatalf("ReadEnd: %v", err)
	}
}

func TestReaderRejections(t *testing.T) {
	gray := ihdr(1, 1, 8, ColorGray, 0)
	tests := []struct {
		name string
		file []byte
		want error
	}{
		{name: "bad signature", file: []byte("not a png at all"), want: ErrFormat},
		{name: "truncated signature", file: []byte{0x89}, want: ErrTruncated},
		{
			name: "missing IHDR",
			file: pngFile(chunk("IDAT", deflate([]byte{0, 0}))),
			want: ErrFormat,
		},
		{
			name: "IEND before IDAT",
			file: pngFile(gray, chunk("IEND", nil)),
			want: ErrFormat,
		},
		{
			name: "PLTE before IHDR",
			file: pngFile(chunk("PLTE", []byte{1, 2, 3}), gray),
			want: ErrFormat,
		},
		{
			name: "oversized PLTE",
			file: pngFile(ihdr(1, 1, 8, ColorPalette, 0), chunk("PLTE", make([]byte, 3*257))),
			want: ErrFormat,
		},
		{
			name: "bad interlace method",
			file: pngFile(ihdr(1, 1, 8, ColorGray, 2)),
			want: ErrUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.file))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReaderChecksumMismatch(t *testing.T) {
	bad := ihdr(1, 1, 8, ColorGray, 0)
	bad[len(bad)-1] ^= 0xFF
	_, err := NewReader(bytes.NewReader(pngFile(bad)))
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestUnfilterRow(t *testing.T) {
	tests := []struct {
		name string
		cr   []byte
		pr   []byte
		bpp  int
		want []byte
	}{
		{
			name: "none",
			cr:   []byte{ftNone, 1, 2, 3},
			pr:   []byte{0, 0, 0, 0},
			bpp:  1,
			want: []byte{1, 2, 3},
		},
		{
			name: "sub",
			cr:   []byte{ftSub, 1, 2, 3},
			pr:   []byte{0, 0, 0, 0},
			bpp:  1,
			want: []byte{1, 3, 6},
		},
		{
			name: "up",
			cr:   []byte{ftUp, 1, 2, 3},
			pr:   []byte{0, 10, 20, 30},
			bpp:  1,
			want: []byte{11, 22, 33},
		},
		{
			name: "average",
			cr:   []byte{ftAverage, 10, 10, 10},
			pr:   []byte{0, 4, 8, 12},
			bpp:  1,
			want: []byte{12, 20, 26},
		},
		{
			name: "paeth",
			cr:   []byte{ftPaeth, 10, 20, 30},
			pr:   []byte{0, 1, 2, 3},
			bpp:  1,
			want: []byte{11, 31, 61},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := bytes.Clone(tt.cr)
			if err := unfilterRow(cr, tt.pr, tt.bpp); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(cr[1:], tt.want) {
				t.Fatalf("unfiltered = %v, want %v", cr[1:], tt.want)
			}
		})
	}

	if err := unfilterRow([]byte{9, 1}, []byte{0, 0}, 1); !errors.Is(err, ErrFormat) {
		t.Fatal("bad filter type not rejected")
	}
}

func TestAdam7PassDims(t *testing.T) {
	tests := []struct {
		w, h int
		want [7][2]int
	}{
		{
			w: 8, h: 8,
			want: [7][2]int{{1, 1}, {1, 1}, {2, 1}, {2, 2}, {4, 2}, {4, 4}, {8, 4}},
		},
		{
			w: 2, h: 2,
			want: [7][2]int{{1, 1}, {0, 1}, {1, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 1}},
		},
		{
			w: 1, h: 1,
			want: [7][2]int{{1, 1}, {0, 1}, {1, 0}, {0, 1}, {1, 0}, {0, 1}, {1, 0}},
		},
	}
	for _, tt := range tests {
		for p, want := range tt.want {
			gw, gh := Adam7Passes[p].Dims(tt.w, tt.h)
			if gw != want[0] || gh != want[1] {
				t.Errorf("%dx%d pass %d dims = (%d,%d), want (%d,%d)",
					tt.w, tt.h, p+1, gw, gh, want[0], want[1])
			}
		}
	}
}

func TestInterlacedRowSequence(t *testing.T) {
	// A 2x2 gray image: passes 1, 6, 7 carry scanlines.
	raw := []byte{
		0, 0xAA, // pass 1: (0,0)
		0, 0xBB, // pass 6: (1,0)
		0, 0xCC, 0xDD, // pass 7: (0,1) (1,1)
	}
	file := pngFile(
		ihdr(2, 2, 8, ColorGray, 1),
		chunk("IDAT", deflate(raw)),
		chunk("IEND", nil),
	)
	r, err := NewReader(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if r.NumPasses() != 7 {
		t.Fatalf("NumPasses = %d", r.NumPasses())
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	var rows [][]byte
	for {
		row, err := r.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, bytes.Clone(row))
	}
	want := [][]byte{{0xAA}, {0xBB}, {0xCC, 0xDD}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if !bytes.Equal(rows[i], want[i]) {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}
