package domain

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNoSession            = errors.New("no active session")
	ErrNoActionTarget       = errors.New("no resolvable action target")
	ErrInvalidStatus        = errors.New("invalid decision status")
)
