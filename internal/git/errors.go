package git

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	derrors "github.com/substra/docpipeline/internal/errors"
)

// Typed git errors enabling structured classification without string parsing upstream.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s rate limited %s: %v", e.Op, e.URL, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s network timeout %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// classifyCloneError wraps go-git clone failures into typed variants.
func classifyCloneError(url string, err error) error {
	return classify("clone", url, err)
}

// classifyFetchError wraps fetch-origin failures into typed variants.
func classifyFetchError(url string, err error) error {
	return classify("fetch", url, err)
}

func classify(op, url string, err error) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return &AuthError{Op: op, URL: url, Err: err}
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return &NotFoundError{Op: op, URL: url, Err: err}
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported") || strings.Contains(l, "unsupported scheme"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}
	return fmt.Errorf("failed to %s repository %s: %w", op, url, err)
}

func isTyped(err error) bool {
	return errors.As(err, new(*AuthError)) ||
		errors.As(err, new(*NotFoundError)) ||
		errors.As(err, new(*UnsupportedProtocolError)) ||
		errors.As(err, new(*RateLimitError)) ||
		errors.As(err, new(*NetworkTimeoutError))
}

// isPermanentGitError reports failures that another attempt cannot fix.
func isPermanentGitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch {
	case errors.As(err, new(*AuthError)),
		errors.As(err, new(*NotFoundError)),
		errors.As(err, new(*UnsupportedProtocolError)):
		return true
	case errors.As(err, new(*RateLimitError)),
		errors.As(err, new(*NetworkTimeoutError)):
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "auth") || strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return true
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "no such remote") || strings.Contains(msg, "invalid reference") {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}

// ToPipelineError maps a checkout failure onto the CLI error categories.
func ToPipelineError(repo string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := derrors.As(err); ok {
		return err
	}
	switch {
	case errors.As(err, new(*AuthError)):
		return derrors.GitAuthError(repo, err)
	case errors.As(err, new(*RateLimitError)), errors.As(err, new(*NetworkTimeoutError)):
		return derrors.GitNetworkError(repo, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityFatal, "checkout canceled").
			WithContext("repository", repo)
	default:
		return derrors.GitCloneError(repo, err)
	}
}
