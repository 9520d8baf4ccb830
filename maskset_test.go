package imgcodec

import "testing"

func TestMaskSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		masks   inputMasks
		bpp     int
		wantErr bool
	}{
		{
			name:  "rgb555",
			masks: inputMasks{red: 0x7C00, green: 0x03E0, blue: 0x001F},
			bpp:   16,
		},
		{
			name:  "rgb565",
			masks: inputMasks{red: 0xF800, green: 0x07E0, blue: 0x001F},
			bpp:   16,
		},
		{
			name: "argb8888",
			masks: inputMasks{
				red: 0x00FF0000, green: 0x0000FF00, blue: 0x000000FF, alpha: 0xFF000000,
			},
			bpp: 32,
		},
		{
			name:  "zero masks",
			masks: inputMasks{},
			bpp:   8,
		},
		{
			name:    "split bit run",
			masks:   inputMasks{red: 0b1010, green: 0, blue: 0},
			bpp:     16,
			wantErr: true,
		},
		{
			name:    "overlapping",
			masks:   inputMasks{red: 0xFF00, green: 0x0FF0, blue: 0x000F},
			bpp:     16,
			wantErr: true,
		},
		{
			name:    "alpha overlaps color",
			masks:   inputMasks{red: 0xF000, green: 0x0F00, blue: 0x00F0, alpha: 0x00FF},
			bpp:     16,
			wantErr: true,
		},
		{
			name:    "outside sample width",
			masks:   inputMasks{red: 0x1F0000, green: 0x03E0, blue: 0x001F},
			bpp:     16,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newMaskSet(tt.masks, tt.bpp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newMaskSet() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskChannelRoundTrip(t *testing.T) {
	// A full field must normalize to 255 and an empty field to 0, for any
	// contiguous mask.
	masks := []uint32{0x1, 0x3, 0x1F, 0x3E0, 0x7C00, 0xF800, 0xFF0000, 0x3FF00000}
	for _, m := range masks {
		ch, err := makeMaskChannel(m)
		if err != nil {
			t.Fatalf("makeMaskChannel(%#x): %v", m, err)
		}
		if got := ch.get(m); got != 255 {
			t.Errorf("full field of mask %#x = %d, want 255", m, got)
		}
		if got := ch.get(0); got != 0 {
			t.Errorf("empty field of mask %#x = %d, want 0", m, got)
		}
	}
}

func TestMaskChannel555Expansion(t *testing.T) {
	ch, err := makeMaskChannel(0x7C00)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		field uint32
		want  uint8
	}{
		{0, 0},
		{1, 8},
		{16, 131},
		{31, 255},
	}
	for _, tt := range tests {
		if got := ch.get(tt.field << 10); got != tt.want {
			t.Errorf("get(%d<<10) = %d, want %d", tt.field, got, tt.want)
		}
	}
}

func TestMaskSetNoAlphaMeansOpaque(t *testing.T) {
	m, err := newMaskSet(inputMasks{red: 0x7C00, green: 0x03E0, blue: 0x001F}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if m.hasAlpha() {
		t.Fatal("hasAlpha() = true for zero alpha mask")
	}
	if got := m.getAlpha(0); got != 0xFF {
		t.Fatalf("getAlpha(0) = %d, want 255", got)
	}
}
