package models

import "errors"

// Identity is the verified caller of an HTTP request
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"username"`
}

// ErrNotFound is returned by the document store for missing records
var ErrNotFound = errors.New("not found")
