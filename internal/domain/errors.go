package domain

import "errors"

var (
	ErrMissingInputColumn    = errors.New("missing input column")
	ErrNonMonotonicTimestamp = errors.New("non-monotonic timestamp")
	ErrEmptyFrame            = errors.New("empty frame")
	ErrInvalidParams         = errors.New("invalid params")
	ErrStageDone             = errors.New("stage already done")
	ErrUpstreamTransient     = errors.New("upstream transient failure")
	ErrUpstreamPermanent     = errors.New("upstream permanent failure")
	ErrReconciliationDrift   = errors.New("reconciliation drift")
	ErrUnknownStrategy       = errors.New("unknown strategy")
	ErrInvalidConfig         = errors.New("invalid config")
	ErrNotFound              = errors.New("not found")
)
