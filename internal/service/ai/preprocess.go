package ai

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes any registered raster format.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return img, nil
}

// PrepareInput packs the image as a batch of one RGB image of the model input
// size with values in [0,1]. Alpha is dropped before resizing, not blended.
func PrepareInput(img image.Image, height, width int) *Tensor {
	var rgb image.Image = opaqueRGB(img)
	if b := rgb.Bounds(); b.Dx() != width || b.Dy() != height {
		rgb = resize.Resize(uint(width), uint(height), rgb, resize.Bicubic)
	}

	input := &Tensor{
		Shape: [4]int{1, height, width, 3},
		Data:  make([]float32, height*width*3),
	}

	bounds := rgb.Bounds()
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := rgb.At(x, y).RGBA()
			input.Data[idx] = float32(r>>8) / 255.0
			input.Data[idx+1] = float32(g>>8) / 255.0
			input.Data[idx+2] = float32(b>>8) / 255.0
			idx += 3
		}
	}

	return input
}

// opaqueRGB copies the straight (non-premultiplied) color of every pixel into
// a fully opaque buffer, so the resampler never sees transparency.
func opaqueRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.Pix[i] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
			i += 4
		}
	}
	return dst
}
