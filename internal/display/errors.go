package display

import "errors"

var (
	ErrAlreadyRunning = errors.New("display: scene already running")
	ErrNotFound       = errors.New("display: scene not found")
	ErrLaunchFailure  = errors.New("display: launch failure")
	ErrDisplayHost    = errors.New("display: host failure")
)
