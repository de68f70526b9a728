package boterr

import "errors"

var (
	ErrNotConnected  = errors.New("onebot not connected")
	ErrActionFailed  = errors.New("onebot action failed")
	ErrActionTimeout = errors.New("onebot action timed out")
	ErrInvalidTarget = errors.New("invalid message target")
)
