package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrUnbalancedSplit     = errors.New("donation split does not balance")
	ErrUnbalancedEntry     = errors.New("journal entry debits do not equal credits")
	ErrInvalidCallback     = errors.New("invalid callback payload")
)
