package util

import "errors"

var (
	ErrTestNotFound         = errors.New("test not found")
	ErrTestNotPublished     = errors.New("test not published or not accessible")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrResultNotReady       = errors.New("attempt not yet submitted")
	ErrQuestionNotFound     = errors.New("question not found")
)
