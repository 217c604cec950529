package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sort"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// CleanCaptcha aggressively denoises and thresholds a captcha image so
// a digits-only OCR pass has a fighting chance. The pipeline runs
// grayscale → autocontrast → median filter → slight blur → adaptive
// threshold → 2x upscale.
func CleanCaptcha(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	gray := toGray(src)
	gray = autocontrast(gray, 5)
	gray = medianFilter(gray)
	gray = slightBlur(gray)
	gray = threshold(gray)
	gray = upscale2x(gray)

	var buf bytes.Buffer
	err = png.Encode(&buf, gray)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	xdraw.Draw(gray, bounds, src, bounds.Min, xdraw.Src)
	return gray
}

// stretches pixel values linearly after discarding the brightest and
// darkest `cutoff` percent of the histogram.
func autocontrast(img *image.Gray, cutoff int) *image.Gray {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return img
	}

	var hist [256]int
	for _, p := range img.Pix {
		hist[p]++
	}

	discard := total * cutoff / 100
	lo, hi := 0, 255
	for n := 0; lo < 255; lo++ {
		n += hist[lo]
		if n > discard {
			break
		}
	}
	for n := 0; hi > 0; hi-- {
		n += hist[hi]
		if n > discard {
			break
		}
	}
	if hi <= lo {
		return img
	}

	out := image.NewGray(bounds)
	scale := 255.0 / float64(hi-lo)
	for i, p := range img.Pix {
		v := float64(int(p)-lo) * scale
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}

// 3x3 median filter, the workhorse against salt-and-pepper captcha noise.
func medianFilter(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	window := make([]uint8, 0, 9)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					window = append(window, img.GrayAt(nx, ny).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.SetGray(x, y, color.Gray{Y: window[len(window)/2]})
		}
	}
	return out
}

// slightBlur applies a small gaussian kernel to soften jagged strokes
// left behind by thresholding artifacts.
func slightBlur(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	kernel := [3][3]int{{1, 2, 1}, {2, 4, 2}, {1, 2, 1}}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum, weight := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					k := kernel[dy+1][dx+1]
					sum += int(img.GrayAt(nx, ny).Y) * k
					weight += k
				}
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum / weight)})
		}
	}
	return out
}

// binarizes around the mean brightness, clamped so near-uniform images
// still split into ink and background.
func threshold(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	total := len(img.Pix)
	if total == 0 {
		return img
	}

	sum := 0
	for _, p := range img.Pix {
		sum += int(p)
	}
	cutoff := sum / total
	if cutoff < 100 {
		cutoff = 100
	}
	if cutoff > 170 {
		cutoff = 170
	}

	out := image.NewGray(bounds)
	for i, p := range img.Pix {
		if int(p) > cutoff {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

func upscale2x(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx()*2, bounds.Dy()*2))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, bounds, xdraw.Src, nil)
	return out
}
