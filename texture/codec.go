package texture

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/pkg/errors"

	_ "image/gif"

	blezektga "github.com/blezek/tga"
	"github.com/ftrvxmtrx/tga"
	_ "github.com/oov/psd"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type Codec int

const (
	CodecUnknown Codec = iota
	CodecJ2C
	CodecTGA
	CodecPNG
	CodecBMP
	CodecJPEG
	CodecPSD
)

var codecExt = map[Codec]string{
	CodecJ2C:  "j2c",
	CodecTGA:  "tga",
	CodecPNG:  "png",
	CodecBMP:  "bmp",
	CodecJPEG: "jpg",
	CodecPSD:  "psd",
}

func (c Codec) Extension() string {
	return codecExt[c]
}

// CodecFromExt maps a file extension (with or without dot) to a codec.
func CodecFromExt(ext string) Codec {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	switch ext {
	case "jpeg":
		return CodecJPEG
	case "jp2", "j2k":
		return CodecJ2C
	}
	for c, e := range codecExt {
		if e == ext {
			return c
		}
	}
	return CodecUnknown
}

// Image is an encoded texture as delivered by a Cache.
type Image struct {
	Codec Codec
	Data  []byte
}

var ErrNoDecoder = errors.New("no decoder for source codec")

func decode(img *Image) (image.Image, error) {
	if img.Codec == CodecJ2C {
		return nil, ErrNoDecoder
	}
	m, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil && img.Codec == CodecTGA {
		// retry
		m, err = blezektga.Decode(bytes.NewReader(img.Data))
	}
	return m, err
}

func downscale(img image.Image, limit int) image.Image {
	rect := img.Bounds()
	sz := rect.Dx()
	if rect.Dy() > sz {
		sz = rect.Dy()
	}
	if limit <= 0 || sz <= limit {
		return img
	}
	scale := float32(limit) / float32(sz)
	dst := image.NewRGBA(image.Rect(0, 0, int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
	return dst
}

// Encode converts img to format ("tga", "png", "bmp", "jpg" or "j2c") and returns the data and file extension.
// "j2c" passes the source data through untouched, always under the "j2c" extension
// so the file matches the name documents refer to. limit > 0 downscales raster output.
func Encode(img *Image, format string, limit int) ([]byte, string, error) {
	target := CodecFromExt(format)
	if target == CodecJ2C {
		return img.Data, target.Extension(), nil
	}
	if target == img.Codec && limit <= 0 {
		return img.Data, target.Extension(), nil
	}

	m, err := decode(img)
	if err != nil {
		return nil, "", errors.Wrapf(err, "decode %s", img.Codec.Extension())
	}
	m = downscale(m, limit)

	var w bytes.Buffer
	switch target {
	case CodecTGA:
		err = tga.Encode(&w, m)
	case CodecPNG:
		err = png.Encode(&w, m)
	case CodecBMP:
		err = bmp.Encode(&w, m)
	case CodecJPEG:
		err = jpeg.Encode(&w, m, &jpeg.Options{Quality: 90})
	default:
		return nil, "", errors.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "encode %s", format)
	}
	return w.Bytes(), target.Extension(), nil
}
