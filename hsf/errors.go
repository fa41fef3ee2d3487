package hsf

import "errors"

// Parse errors. All of these are fatal except ErrDanglingTexture, which is
// reported through File.Warnings while the affected material degrades to
// untextured. Fatal errors are wrapped with the byte offset and section where
// they were detected.
var (
	ErrBadMagic         = errors.New("hsf: invalid magic: expected 'HSFV037'")
	ErrTruncated        = errors.New("hsf: truncated input")
	ErrMissingChunk     = errors.New("hsf: required section missing")
	ErrDanglingParent   = errors.New("hsf: dangling parent reference")
	ErrDanglingGeometry = errors.New("hsf: dangling geometry reference")
	ErrDanglingTexture  = errors.New("hsf: dangling texture reference")
)
