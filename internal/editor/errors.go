package editor

import "errors"

var (
	ErrReadOnly   = errors.New("editor: read-only access")
	ErrNoRow      = errors.New("editor: no such row")
	ErrUnknownTab = errors.New("editor: unknown tab")
)
