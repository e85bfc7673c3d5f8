package utils

import "errors"

// ErrPipelineLocked signals another run currently holds the pipeline lock.
var ErrPipelineLocked = errors.New("pipeline is locked by another run")
