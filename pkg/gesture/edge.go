package gesture

import (
	"context"
	"crypto/sha1"
	"encoding/hex"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// ScrollToEdge swipes in dir until the page source digest stays unchanged
// for EdgeStabilityRepeats consecutive swipes or MaxSwipes is spent. It
// returns the number of swipes performed.
func (s *Scroller) ScrollToEdge(ctx context.Context, dir Direction) (int, error) {
	stable := 0
	for i := 0; i < s.opts.MaxSwipes; i++ {
		before, beforeErr := s.digest()
		if err := s.Swipe(ctx, dir); err != nil {
			if ctx.Err() != nil {
				return i, ctx.Err()
			}
			logger.Warn("[scroll] edge %s swipe %d failed: %v", dir, i+1, err)
		}
		if err := s.clock.Sleep(ctx, s.opts.PauseAfterSwipe); err != nil {
			return i + 1, err
		}
		after, afterErr := s.digest()

		switch {
		case beforeErr != nil || afterErr != nil:
			stable = 0
		case before == after:
			stable++
		default:
			stable = 0
		}
		if stable >= s.opts.EdgeStabilityRepeats {
			logger.Debug("[scroll] reached %s edge after %d swipes", dir, i+1)
			return i + 1, nil
		}
	}
	logger.Debug("[scroll] %s edge not confirmed after %d swipes", dir, s.opts.MaxSwipes)
	return s.opts.MaxSwipes, nil
}

func (s *Scroller) digest() (string, error) {
	src, err := s.session.Source()
	if err != nil {
		logger.Debug("[scroll] page source: %v", err)
		return "", err
	}
	sum := sha1.Sum([]byte(src))
	return hex.EncodeToString(sum[:]), nil
}
