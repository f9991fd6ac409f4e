package repository

import "errors"

// Общие ошибки для всех реализаций хранилища
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrConflict      = errors.New("concurrent modification")
)
