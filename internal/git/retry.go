package git

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/logfields"
)

// withRetry runs one checkout attempt per policy slot. Permanent failures stop
// immediately; with the default policy there is exactly one attempt.
func (c *Client) withRetry(ctx context.Context, op string, repo config.Repository, fn func() (Result, error)) (Result, error) {
	start := time.Now()
	var res Result
	attempts := 0
	err := c.policy.Do(ctx, func() error {
		attempts++
		var err error
		res, err = fn()
		return err
	}, func(err error) bool {
		if isPermanentGitError(err) {
			slog.Error("permanent git error", slog.String("operation", op), logfields.Name(repo.Name), logfields.Error(err))
			return false
		}
		return true
	}, func(attempt int, err error) {
		slog.Warn("retrying git operation", slog.String("operation", op), logfields.Name(repo.Name), slog.Int("attempt", attempt), logfields.Error(err))
	})
	c.observe(repo, start, err)
	if err != nil {
		if attempts > 1 {
			return Result{}, fmt.Errorf("git %s failed after %d attempts: %w", op, attempts, err)
		}
		return Result{}, err
	}
	return res, nil
}
