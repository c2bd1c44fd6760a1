package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidParams marks a malformed search request.
var ErrInvalidParams = errors.New("invalid search parameters")

// NoMatchError reports that a valid search matched nothing. It is a normal
// outcome, not a fault.
type NoMatchError struct {
	Reason string
}

func (e *NoMatchError) Error() string {
	if e.Reason == "" {
		return "no matching events"
	}
	return "no matching events: " + e.Reason
}

// InvalidSegmentError reports a cut window with no positive duration after
// clamping.
type InvalidSegmentError struct {
	Key   string
	Start float64
	End   float64
}

func (e *InvalidSegmentError) Error() string {
	return fmt.Sprintf("invalid segment %s: window [%.3f, %.3f] has no positive duration", e.Key, e.Start, e.End)
}

// CutFailure reports a transcoder run that did not produce output. Transient
// failures (killed by a signal, resource exhaustion) are worth one retry.
type CutFailure struct {
	Reason    string
	ExitCode  int
	TimedOut  bool
	Transient bool
}

func (e *CutFailure) Error() string {
	if e.TimedOut {
		return "cut failed: timed out: " + e.Reason
	}
	return fmt.Sprintf("cut failed (exit %d): %s", e.ExitCode, e.Reason)
}

// IndexUnavailableError reports that the durable store cannot be used. It
// aborts a whole batch.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index unavailable (%s): %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error {
	return e.Err
}

// ManifestMissingError reports a (game, period) with no mapped video.
type ManifestMissingError struct {
	GameID string
	Period int
}

func (e *ManifestMissingError) Error() string {
	return fmt.Sprintf("no video mapped for game %s period %d", e.GameID, e.Period)
}

// IsIndexUnavailable reports whether err is or wraps an IndexUnavailableError.
func IsIndexUnavailable(err error) bool {
	var iu *IndexUnavailableError
	return errors.As(err, &iu)
}

// AsIndexUnavailable wraps err as an IndexUnavailableError for op. Errors
// that already are one, and the caller's own cancellation or deadline, are
// returned unchanged.
func AsIndexUnavailable(op string, err error) error {
	if err == nil || IsIndexUnavailable(err) || IsCancellation(err) {
		return err
	}
	return &IndexUnavailableError{Op: op, Err: err}
}

// IsCancellation reports whether err comes from a cancelled or expired
// context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
