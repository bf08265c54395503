package watch

import (
	"context"
	"os"
	"time"

	"github.com/imageopt/engine/internal/apperrors"
)

// stabilityPollInterval, stabilityRequiredReads, and stabilityTimeout
// implement spec §4.12 step 4 / spec §5's 30s stability-wait timeout.
const (
	stabilityPollInterval  = 500 * time.Millisecond
	stabilityRequiredReads = 3
	stabilityTimeout       = 30 * time.Second
)

// WaitStable polls path's (size, mtime) every stabilityPollInterval and
// returns once stabilityRequiredReads consecutive reads are unchanged, or an
// error if stabilityTimeout elapses first or the file disappears.
func WaitStable(ctx context.Context, path string) error {
	deadline := time.Now().Add(stabilityTimeout)

	var lastSize int64 = -1
	var lastMtime time.Time
	consecutive := 0

	ticker := time.NewTicker(stabilityPollInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return apperrors.New(apperrors.CategoryUnknown, "watch.WaitStable", err)
		}

		if info.Size() == lastSize && info.ModTime().Equal(lastMtime) {
			consecutive++
		} else {
			consecutive = 1
			lastSize = info.Size()
			lastMtime = info.ModTime()
		}

		if consecutive >= stabilityRequiredReads {
			return nil
		}

		if time.Now().After(deadline) {
			return apperrors.New(apperrors.CategoryUnknown, "watch.WaitStable",
				context.DeadlineExceeded)
		}

		select {
		case <-ctx.Done():
			return apperrors.New(apperrors.CategoryUnknown, "watch.WaitStable", ctx.Err())
		case <-ticker.C:
		}
	}
}
