package model

import "errors"

// ErrNotFound is returned by stores that hold nothing for the requested key.
var ErrNotFound = errors.New("not found")
