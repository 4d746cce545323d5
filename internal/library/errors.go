package library

import "errors"

var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrSentenceNotFound = errors.New("sentence not found")
	ErrGroupNotFound    = errors.New("group not found")
)
