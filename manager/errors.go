package manager

import "github.com/pkg/errors"

var (
	ErrInvalidTarget   = errors.New("manager: target peer count must be positive")
	ErrInvalidInterval = errors.New("manager: heartbeat/status/ping intervals must be positive")
)
