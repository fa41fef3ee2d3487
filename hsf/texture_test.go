package hsf

import "testing"

func TestRGB565(t *testing.T) {
	if got := rgb565(0xFFFF); got != [4]uint8{0xFF, 0xFF, 0xFF, 0xFF} {
		t.Errorf("white: %v", got)
	}
	if got := rgb565(0xF800); got != [4]uint8{0xFF, 0, 0, 0xFF} {
		t.Errorf("red: %v", got)
	}
	if got := rgb565(0x07E0); got != [4]uint8{0, 0xFF, 0, 0xFF} {
		t.Errorf("green: %v", got)
	}
	if got := rgb565(0x001F); got != [4]uint8{0, 0, 0xFF, 0xFF} {
		t.Errorf("blue: %v", got)
	}
}

func TestRGB5A3(t *testing.T) {
	// high bit set: opaque 5-bit channels
	if got := rgb5a3(0xFFFF); got != [4]uint8{0xF8, 0xF8, 0xF8, 0xFF} {
		t.Errorf("opaque white: %v", got)
	}
	// high bit clear: 3-bit alpha, 4-bit channels
	if got := rgb5a3(0x7FFF); got != [4]uint8{0xFF, 0xFF, 0xFF, 0xE0} {
		t.Errorf("translucent white: %v", got)
	}
	if got := rgb5a3(0x0000); got != [4]uint8{0, 0, 0, 0} {
		t.Errorf("transparent black: %v", got)
	}
}

func TestDecodePalette(t *testing.T) {
	pal := decodePalette([]byte{0x80, 0x40}, PalIA8)
	if pal[0] != [4]uint8{0x40, 0x40, 0x40, 0x80} {
		t.Errorf("ia8 palette: %v", pal[0])
	}
}

func TestReverseIndexBits(t *testing.T) {
	// selectors a b c d become d c b a
	if got := reverseIndexBits(0b00011011); got != 0b11100100 {
		t.Errorf("got %08b", got)
	}
	if got := reverseIndexBits(reverseIndexBits(0xA7)); got != 0xA7 {
		t.Errorf("double reverse: %02X", got)
	}
}

func TestTextureByteSize(t *testing.T) {
	cases := []struct {
		format TextureFormat
		w, h   int
		want   int
	}{
		{TexI4, 8, 8, 32},
		{TexI4, 9, 9, 128},
		{TexI8, 8, 4, 32},
		{TexRGB565, 4, 4, 32},
		{TexRGBA32, 4, 4, 64},
		{TexCMPR, 8, 8, 32},
		{TexCMPR, 16, 16, 128},
	}
	for _, c := range cases {
		if got := textureByteSize(c.format, c.w, c.h); got != c.want {
			t.Errorf("%v %dx%d: got %d, want %d", c.format, c.w, c.h, got, c.want)
		}
	}
}

func TestMapTextureFormat(t *testing.T) {
	if f, _, ok := mapTextureFormat(0x07, 4); !ok || f != TexCMPR {
		t.Errorf("0x07: %v %v", f, ok)
	}
	if f, p, ok := mapTextureFormat(0x09, 8); !ok || f != TexC8 || p != PalRGB565 {
		t.Errorf("0x09: %v %v %v", f, p, ok)
	}
	if f, p, ok := mapTextureFormat(0x0A, 4); !ok || f != TexC4 || p != PalRGB5A3 {
		t.Errorf("0x0A bpp4: %v %v %v", f, p, ok)
	}
	if _, _, ok := mapTextureFormat(0x42, 8); ok {
		t.Error("0x42 should be unsupported")
	}
}

func TestDecodeTexture_I8(t *testing.T) {
	// one 8x4 block, pixel value equals its block offset
	data := make([]byte, 32)
	for i := range data {
		data[i] = uint8(i * 8)
	}
	img, err := decodeTexture(data, 8, 4, TexI8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.NRGBAAt(3, 2); got.R != 19*8 || got.A != 0xFF {
		t.Errorf("pixel (3,2): %v", got)
	}
}

func TestDecodeTexture_I4(t *testing.T) {
	data := make([]byte, 32)
	data[0] = 0xF0 // pixels (0,0)=0xF, (1,0)=0x0
	img, err := decodeTexture(data, 8, 8, TexI4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.NRGBAAt(0, 0); got.R != 0xFF {
		t.Errorf("pixel (0,0): %v", got)
	}
	if got := img.NRGBAAt(1, 0); got.R != 0 {
		t.Errorf("pixel (1,0): %v", got)
	}
}

func TestDecodeTexture_C8BadIndex(t *testing.T) {
	data := make([]byte, 32)
	data[0] = 5 // palette has one entry
	if _, err := decodeTexture(data, 8, 4, TexC8, [][4]uint8{{1, 2, 3, 4}}); err == nil {
		t.Fatal("expected palette index error")
	}
}

func TestDecodeTexture_RGBA32(t *testing.T) {
	// single 4x4 block: plane one AR, plane two GB
	data := make([]byte, 64)
	data[0] = 0x80 // A of pixel 0
	data[1] = 0x11 // R of pixel 0
	data[32] = 0x22
	data[33] = 0x33
	img, err := decodeTexture(data, 4, 4, TexRGBA32, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := img.NRGBAAt(0, 0)
	if got.R != 0x11 || got.G != 0x22 || got.B != 0x33 || got.A != 0x80 {
		t.Errorf("pixel (0,0): %v", got)
	}
}
