//go:build ocr

package ocr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// LocalSolver runs tesseract in-process against a cleaned-up captcha
// image. It is a degraded-mode alternative to the remote endpoint and
// requires the system tesseract library, hence the build tag.
//
// Solve never fails: when the backend is unusable it reports an empty
// string and lets the caller's digit-length gate reject the attempt.
type LocalSolver struct{}

func NewLocalSolver() LocalSolver {
	return LocalSolver{}
}

func (LocalSolver) Solve(ctx context.Context, image []byte) (string, error) {
	// tesseract is CPU-bound; run it off the caller's path so one slow
	// captcha cannot stall concurrent fetches.
	result := make(chan string, 1)
	go func() {
		result <- recognizeDigits(ctx, image)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text := <-result:
		return text, nil
	}
}

func recognizeDigits(ctx context.Context, image []byte) string {
	cleaned, err := CleanCaptcha(image)
	if err != nil {
		slog.WarnContext(ctx, "failed to preprocess captcha for local ocr", "err", err)
		return ""
	}

	client := gosseract.NewClient()
	defer client.Close()

	err = client.SetWhitelist("0123456789")
	if err != nil {
		slog.WarnContext(ctx, "local ocr unavailable", "err", err)
		return ""
	}
	err = client.SetPageSegMode(gosseract.PSM_SINGLE_LINE)
	if err != nil {
		slog.WarnContext(ctx, "local ocr unavailable", "err", err)
		return ""
	}
	err = client.SetImageFromBytes(cleaned)
	if err != nil {
		slog.WarnContext(ctx, "local ocr rejected captcha image", "err", err)
		return ""
	}

	text, err := client.Text()
	if err != nil {
		slog.WarnContext(ctx, "local ocr recognition failed", "err", err)
		return ""
	}
	return strings.TrimSpace(text)
}
