package service

import "errors"

var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrNotAuthorized      = errors.New("authentication required")
	ErrNotPurchased       = errors.New("template not purchased by user")
	ErrMissingFields      = errors.New("required fields are empty")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
