package task

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid task input")
	ErrInvalidPriority = errors.New("invalid priority")
)
