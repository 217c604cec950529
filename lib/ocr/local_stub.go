//go:build !ocr

package ocr

import (
	"context"
	"log/slog"
)

// LocalSolver is the stub used when the "ocr" build tag is not set.
// In-process recognition needs the system tesseract library, so the
// default build degrades to an empty result instead of linking cgo.
//
// To enable it, rebuild with:
//
//	go build -tags ocr
type LocalSolver struct{}

func NewLocalSolver() LocalSolver {
	return LocalSolver{}
}

func (LocalSolver) Solve(ctx context.Context, image []byte) (string, error) {
	slog.DebugContext(ctx, "local ocr not compiled in, rebuild with -tags ocr")
	return "", nil
}
