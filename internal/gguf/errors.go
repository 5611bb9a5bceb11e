package gguf

import "errors"

var (
	ErrInvalidMagic       = errors.New("invalid GGUF magic")
	ErrUnsupportedVersion = errors.New("unsupported GGUF version")
	ErrCorrupt            = errors.New("corrupt GGUF file")
	ErrUnknownTensorType  = errors.New("unknown tensor type")
	ErrInvalidValue       = errors.New("invalid metadata value")
)
