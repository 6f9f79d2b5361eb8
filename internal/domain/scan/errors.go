package scan

import "errors"

var (
	ErrOwnerRequired    = errors.New("owner id is required")
	ErrImageRequired    = errors.New("image payload is required")
	ErrFilenameRequired = errors.New("filename is required")
	ErrInvalidSource    = errors.New("invalid scan source")
)
