package converter

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blezek/tga"
	"golang.org/x/image/draw"

	"github.com/hsfkit/hsfconv/hsf"

	_ "image/gif"
	_ "image/jpeg"

	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
)

// TextureExt selects the image format written by ExportTextures.
type TextureExt string

const (
	TexturePNG TextureExt = ".png"
	TextureTGA TextureExt = ".tga"
)

// ExportTextures writes the decoded textures of f into dir, one file per
// texture, named after the texture. The directory is created if needed.
func ExportTextures(f *hsf.File, dir string, ext TextureExt) error {
	if len(f.Textures) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, texture := range f.Textures {
		if texture.Image == nil {
			continue
		}
		path := filepath.Join(dir, texture.Name+string(ext))
		if err := writeImage(path, texture.Image, ext); err != nil {
			return fmt.Errorf("texture %s: %w", texture.Name, err)
		}
	}
	return nil
}

func writeImage(path string, img image.Image, ext TextureExt) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	switch ext {
	case TextureTGA:
		return tga.Encode(w, img)
	default:
		return png.Encode(w, img)
	}
}

// ApplyTextureOverrides replaces decoded textures with same-named image
// files found in dir. Override images are scaled to the original texture
// size so UV mapping is unaffected.
func ApplyTextureOverrides(f *hsf.File, dir string) error {
	for _, texture := range f.Textures {
		p := findOverride(dir, texture.Name)
		if p == "" {
			continue
		}
		img, err := loadImage(p)
		if err != nil {
			return fmt.Errorf("texture override %s: %w", p, err)
		}
		texture.Image = toNRGBA(img, texture.Width, texture.Height)
	}
	return nil
}

func findOverride(dir, name string) string {
	for _, ext := range []string{".png", ".tga", ".bmp", ".jpg", ".psd"} {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadImage reads an image file, retrying headerless TGA files that
// image.Decode cannot sniff.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil && strings.ToLower(filepath.Ext(path)) == ".tga" {
		// retry
		f.Seek(0, io.SeekStart)
		img, err = tga.Decode(f)
	}
	return img, err
}

func toNRGBA(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	}
	return dst
}
