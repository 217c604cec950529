package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func captchaFixture(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	// a fat dark stroke with some salt noise around it
	for y := 4; y < 12; y++ {
		for x := 8; x < 12; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	img.Set(2, 2, color.RGBA{A: 255})
	img.Set(37, 13, color.RGBA{A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCleanCaptcha(t *testing.T) {
	cleaned, err := CleanCaptcha(captchaFixture(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(cleaned))
	require.NoError(t, err)

	// upscaled 2x
	require.Equal(t, 80, img.Bounds().Dx())
	require.Equal(t, 32, img.Bounds().Dy())
}

func TestCleanCaptchaRejectsGarbage(t *testing.T) {
	_, err := CleanCaptcha([]byte("definitely not an image"))
	require.Error(t, err)
}

func TestThresholdBinarizes(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 16)
	}

	out := threshold(img)
	for _, p := range out.Pix {
		require.Contains(t, []uint8{0, 255}, p)
	}
}

func TestDigitsOnly(t *testing.T) {
	require.Equal(t, "1234", DigitsOnly(" 1a2b3c4 "))
	require.Equal(t, "", DigitsOnly("abc"))
}
