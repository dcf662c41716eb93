package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrSlugTaken     = errors.New("slug already taken")
	ErrSessionClosed = errors.New("edit session closed")
)
