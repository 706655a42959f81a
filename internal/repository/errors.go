package repository

import "errors"

// ErrNotFound is returned when a job, webhook, or delivery does not exist.
var ErrNotFound = errors.New("record not found")
