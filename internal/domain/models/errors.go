package models

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientHistory = errors.New("not enough price history to compute features")
	ErrNotFound            = errors.New("not found")
)
