package model

import "errors"

var (
	ErrNoCredential     = errors.New("no credential")
	ErrNoStagedFiles    = errors.New("no staged files")
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidToken     = errors.New("invalid or rotated token")
	ErrTokenExpired     = errors.New("token expired")
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")
	ErrFileTooLarge     = errors.New("file too large")
	ErrServerCancelled  = errors.New("server has been cancelled")
)
