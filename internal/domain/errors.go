package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNoSignals     = errors.New("no signals available")
	ErrBadSchema     = errors.New("unexpected record schema")
	ErrContextDone   = errors.New("context cancelled")
)
