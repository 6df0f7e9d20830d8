package graph

import "errors"

var (
	ErrNilNode        = errors.New("node must not be nil")
	ErrSelfConnection = errors.New("node cannot be connected to itself")
	ErrCycle          = errors.New("connection would create a cycle")
	ErrDisposed       = errors.New("node is disposed")
	ErrVolumeRange    = errors.New("volume must not be negative")
	ErrPanRange       = errors.New("pan must be in [0, 1]")
	ErrAlreadyOwned   = errors.New("node is already owned by another mixer")
)
