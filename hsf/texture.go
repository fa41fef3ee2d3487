package hsf

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/mauserzjeh/dxt"
)

// TextureFormat is a GameCube texture encoding.
// See https://wiki.tockdom.com/wiki/Image_Formats for the block layouts.
type TextureFormat int

const (
	TexI4     TextureFormat = 0x00 // 4bpp grey, 8x8 blocks
	TexI8     TextureFormat = 0x01 // 8bpp grey, 8x4 blocks
	TexIA4    TextureFormat = 0x02 // 8bpp grey+alpha, 8x4 blocks
	TexIA8    TextureFormat = 0x03 // 16bpp grey+alpha, 4x4 blocks
	TexRGB565 TextureFormat = 0x04 // 16bpp color, 4x4 blocks
	TexRGB5A3 TextureFormat = 0x05 // 16bpp color+alpha, 4x4 blocks
	TexRGBA32 TextureFormat = 0x06 // 32bpp color+alpha, 4x4 blocks in two planes
	TexC4     TextureFormat = 0x08 // 4bpp paletted, 8x8 blocks
	TexC8     TextureFormat = 0x09 // 8bpp paletted, 8x4 blocks
	TexCMPR   TextureFormat = 0x0E // 4bpp BC1-family, 8x8 blocks of four 4x4 tiles
)

func (f TextureFormat) String() string {
	switch f {
	case TexI4:
		return "I4"
	case TexI8:
		return "I8"
	case TexIA4:
		return "IA4"
	case TexIA8:
		return "IA8"
	case TexRGB565:
		return "RGB565"
	case TexRGB5A3:
		return "RGB5A3"
	case TexRGBA32:
		return "RGBA32"
	case TexC4:
		return "C4"
	case TexC8:
		return "C8"
	case TexCMPR:
		return "CMPR"
	}
	return fmt.Sprintf("Unknown(0x%02X)", int(f))
}

// PaletteFormat is the encoding of C4/C8 palette entries.
type PaletteFormat int

const (
	PalIA8    PaletteFormat = 0
	PalRGB565 PaletteFormat = 1
	PalRGB5A3 PaletteFormat = 2
)

type textureInfo struct {
	nameOfs    int32
	maxLOD     uint32
	formatRaw  uint8
	bpp        uint8
	width      uint16
	height     uint16
	palEntries uint16
	palIndex   int32
	dataOfs    uint32
}

type paletteInfo struct {
	nameOfs int32
	format  int32
	count   int32
	dataOfs uint32
}

func pad(v, n int) int {
	if v%n != 0 {
		v += n - v%n
	}
	return v
}

// textureByteSize returns the encoded payload size for a texture.
func textureByteSize(f TextureFormat, w, h int) int {
	switch f {
	case TexI4, TexC4, TexCMPR:
		return pad(w, 8) * pad(h, 8) / 2
	case TexI8, TexIA4, TexC8:
		return pad(w, 8) * pad(h, 4)
	case TexIA8, TexRGB565, TexRGB5A3:
		return pad(w, 4) * pad(h, 4) * 2
	case TexRGBA32:
		return pad(w, 4) * pad(h, 4) * 4
	}
	return 0
}

// parseTextures decodes the texture and palette sections. Per-texture decode
// problems are warnings: the texture is skipped and any material referencing
// it later degrades to untextured.
func (p *parser) parseTextures() error {
	texSec := p.h.Section(SectionTexture)
	p.r.enter(SectionTexture.String())
	p.r.seek(int(texSec.Offset))
	infos := make([]textureInfo, p.r.recordCount(int(texSec.Count), 32))
	for i := range infos {
		t := &infos[i]
		t.nameOfs = p.r.readS32()
		t.maxLOD = p.r.readU32()
		t.formatRaw = p.r.readU8()
		t.bpp = p.r.readU8()
		t.width = p.r.readU16()
		t.height = p.r.readU16()
		t.palEntries = p.r.readU16()
		p.r.skip(4) // texture tint
		t.palIndex = p.r.readS32()
		p.r.skip(4)
		t.dataOfs = p.r.readU32()
	}
	texBase := p.r.tell()

	palSec := p.h.Section(SectionPalette)
	p.r.enter(SectionPalette.String())
	p.r.seek(int(palSec.Offset))
	pals := make([]paletteInfo, p.r.recordCount(int(palSec.Count), 16))
	for i := range pals {
		pals[i].nameOfs = p.r.readS32()
		pals[i].format = p.r.readS32()
		pals[i].count = p.r.readS32()
		pals[i].dataOfs = p.r.readU32()
	}
	palBase := p.r.tell()
	if err := p.r.Err(); err != nil {
		return err
	}

	p.r.enter(SectionTexture.String())
	for i := range infos {
		info := &infos[i]
		name := p.name(info.nameOfs)

		format, palFormat, ok := mapTextureFormat(info.formatRaw, info.bpp)
		if !ok {
			p.warnf("texture %d (%q): unsupported format 0x%02X, skipped", i, name, info.formatRaw)
			continue
		}

		var palette [][4]uint8
		if info.palIndex >= 0 {
			if int(info.palIndex) >= len(pals) {
				p.warnf("texture %d (%q): palette %d of %d, skipped", i, name, info.palIndex, len(pals))
				continue
			}
			pal := pals[info.palIndex]
			p.r.seek(palBase + int(pal.dataOfs))
			raw := p.r.bytes(2 * int(pal.count))
			if raw == nil {
				return p.r.Err()
			}
			palette = decodePalette(raw, palFormat)
		}

		w, h := int(info.width), int(info.height)
		p.r.seek(texBase + int(info.dataOfs))
		data := p.r.bytes(textureByteSize(format, w, h))
		if data == nil {
			return p.r.Err()
		}

		img, err := decodeTexture(data, w, h, format, palette)
		if err != nil {
			p.warnf("texture %d (%q): %v, skipped", i, name, err)
			continue
		}
		p.f.Textures = append(p.f.Textures, &Texture{
			Name:   name,
			Format: format,
			Width:  w,
			Height: h,
			Image:  img,
		})
	}
	return p.r.Err()
}

// mapTextureFormat translates the raw format byte. Values 0x09..0x0B are
// paletted with the palette format folded into the texture format byte.
func mapTextureFormat(raw, bpp uint8) (TextureFormat, PaletteFormat, bool) {
	switch raw {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06:
		return TextureFormat(raw), PalIA8, true
	case 0x07:
		return TexCMPR, PalIA8, true
	case 0x09, 0x0A, 0x0B:
		format := TexC8
		if bpp == 4 {
			format = TexC4
		}
		switch raw {
		case 0x09:
			return format, PalRGB565, true
		case 0x0A:
			return format, PalRGB5A3, true
		default:
			return format, PalIA8, true
		}
	}
	return 0, 0, false
}

func decodePalette(raw []byte, format PaletteFormat) [][4]uint8 {
	out := make([][4]uint8, len(raw)/2)
	for i := range out {
		pixel := binary.BigEndian.Uint16(raw[i*2:])
		switch format {
		case PalIA8:
			v := uint8(pixel & 0xFF)
			out[i] = [4]uint8{v, v, v, uint8(pixel >> 8)}
		case PalRGB565:
			out[i] = rgb565(pixel)
		case PalRGB5A3:
			out[i] = rgb5a3(pixel)
		}
	}
	return out
}

func rgb565(pixel uint16) [4]uint8 {
	r := uint8(pixel >> 11 & 0x1F)
	g := uint8(pixel >> 5 & 0x3F)
	b := uint8(pixel & 0x1F)
	return [4]uint8{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xFF}
}

func rgb5a3(pixel uint16) [4]uint8 {
	if pixel>>15&1 != 0 {
		return [4]uint8{
			0x08 * uint8(pixel>>10&0x1F),
			0x08 * uint8(pixel>>5&0x1F),
			0x08 * uint8(pixel&0x1F),
			0xFF,
		}
	}
	return [4]uint8{
		0x11 * uint8(pixel >> 8 & 0x0F),
		0x11 * uint8(pixel >> 4 & 0x0F),
		0x11 * uint8(pixel & 0x0F),
		0x20 * uint8(pixel>>12&0x07),
	}
}

// decodeTexture converts block-tiled GameCube texture data into a linear
// RGBA image.
func decodeTexture(data []byte, w, h int, format TextureFormat, palette [][4]uint8) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	set := func(x, y int, c [4]uint8) {
		if x >= w || y >= h {
			return
		}
		o := img.PixOffset(x, y)
		copy(img.Pix[o:o+4], c[:])
	}
	lookup := func(index int) ([4]uint8, error) {
		if index >= len(palette) {
			return [4]uint8{}, fmt.Errorf("palette index %d of %d", index, len(palette))
		}
		return palette[index], nil
	}

	switch format {
	case TexI4:
		decodeBlocks(w, h, 8, 8, func(bx, by int, in func() uint8) {
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x += 2 {
					b := in()
					set(bx+x, by+y, grey(b>>4*0x11))
					set(bx+x+1, by+y, grey(b&0xF*0x11))
				}
			}
		}, data)
	case TexI8:
		decodeBlocks(w, h, 8, 4, func(bx, by int, in func() uint8) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					set(bx+x, by+y, grey(in()))
				}
			}
		}, data)
	case TexIA4:
		decodeBlocks(w, h, 8, 4, func(bx, by int, in func() uint8) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					b := in()
					v := b & 0xF * 0x11
					set(bx+x, by+y, [4]uint8{v, v, v, b >> 4 * 0x11})
				}
			}
		}, data)
	case TexIA8:
		decodeBlocks(w, h, 4, 4, func(bx, by int, in func() uint8) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					a, v := in(), in()
					set(bx+x, by+y, [4]uint8{v, v, v, a})
				}
			}
		}, data)
	case TexRGB565:
		decodeBlocks(w, h, 4, 4, func(bx, by int, in func() uint8) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					set(bx+x, by+y, rgb565(uint16(in())<<8|uint16(in())))
				}
			}
		}, data)
	case TexRGB5A3:
		decodeBlocks(w, h, 4, 4, func(bx, by int, in func() uint8) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					set(bx+x, by+y, rgb5a3(uint16(in())<<8|uint16(in())))
				}
			}
		}, data)
	case TexRGBA32:
		// Two 32-byte planes per block: AR pairs then GB pairs.
		pw := pad(w, 4)
		for by := 0; by < pad(h, 4); by += 4 {
			for bx := 0; bx < pw; bx += 4 {
				block := data[(by/4*(pw/4)+bx/4)*64:]
				for i := 0; i < 16; i++ {
					set(bx+i%4, by+i/4, [4]uint8{
						block[i*2+1], block[32+i*2], block[32+i*2+1], block[i*2],
					})
				}
			}
		}
	case TexC4:
		var err error
		decodeBlocks(w, h, 8, 8, func(bx, by int, in func() uint8) {
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x += 2 {
					b := in()
					var c0, c1 [4]uint8
					if c0, err = lookup(int(b >> 4)); err != nil {
						return
					}
					if c1, err = lookup(int(b & 0xF)); err != nil {
						return
					}
					set(bx+x, by+y, c0)
					set(bx+x+1, by+y, c1)
				}
			}
		}, data)
		if err != nil {
			return nil, err
		}
	case TexC8:
		var err error
		decodeBlocks(w, h, 8, 4, func(bx, by int, in func() uint8) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					var c [4]uint8
					if c, err = lookup(int(in())); err != nil {
						return
					}
					set(bx+x, by+y, c)
				}
			}
		}, data)
		if err != nil {
			return nil, err
		}
	case TexCMPR:
		return decodeCMPR(data, w, h)
	default:
		return nil, fmt.Errorf("no decoder for format %v", format)
	}
	return img, nil
}

func grey(v uint8) [4]uint8 {
	return [4]uint8{v, v, v, 0xFF}
}

// decodeBlocks walks block-tiled data in file order and hands each block a
// sequential byte source.
func decodeBlocks(w, h, bw, bh int, decode func(bx, by int, in func() uint8), data []byte) {
	pos := 0
	in := func() uint8 {
		b := data[pos]
		pos++
		return b
	}
	for by := 0; by < pad(h, bh); by += bh {
		for bx := 0; bx < pad(w, bw); bx += bw {
			decode(bx, by, in)
		}
	}
}

// decodeCMPR rearranges CMPR data into a standard BC1 stream and decodes it
// with the dxt package. CMPR tiles four 4x4 BC1 sub-blocks into 8x8 blocks,
// stores the color words big-endian, and packs the leftmost pixel of each
// index byte into the high bits, all of which is undone here.
func decodeCMPR(data []byte, w, h int) (*image.NRGBA, error) {
	pw, ph := pad(w, 8), pad(h, 8)
	linear := make([]byte, pw*ph/2)
	pos := 0
	for by := 0; by < ph; by += 8 {
		for bx := 0; bx < pw; bx += 8 {
			for sub := 0; sub < 4; sub++ {
				src := data[pos : pos+8]
				pos += 8
				sx, sy := bx+sub%2*4, by+sub/2*4
				dst := linear[(sy/4*(pw/4)+sx/4)*8:]
				// color words to little-endian
				dst[0], dst[1] = src[1], src[0]
				dst[2], dst[3] = src[3], src[2]
				for i := 0; i < 4; i++ {
					dst[4+i] = reverseIndexBits(src[4+i])
				}
			}
		}
	}

	decoded, err := dxt.DecodeDXT1(linear, uint(pw), uint(ph))
	if err != nil {
		return nil, fmt.Errorf("cmpr decode: %w", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w*4], decoded[y*pw*4:])
	}
	return img, nil
}

// reverseIndexBits mirrors the four 2-bit selectors within a BC1 index byte.
func reverseIndexBits(b uint8) uint8 {
	return b>>6 | b>>2&0x0C | b<<2&0x30 | b<<6
}
