package publisher

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxPhotoSide is the longest edge a highlight photo is sent with.
const MaxPhotoSide = 2560

// Downscale shrinks an encoded image so its longest edge is at most
// maxSide and re-encodes it as JPEG. Images already within bounds, and
// data that cannot be decoded, are returned unchanged with resized false.
func Downscale(data []byte, maxSide int) (out []byte, resized bool, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, false, nil
	}
	longest := cfg.Width
	if cfg.Height > longest {
		longest = cfg.Height
	}
	if maxSide <= 0 || longest <= maxSide {
		return data, false, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false, nil
	}

	w := cfg.Width * maxSide / longest
	h := cfg.Height * maxSide / longest
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}
