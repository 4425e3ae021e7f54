// Package repository contains the catalog data access abstractions.
// Implementations live in subpackages (postgres).
package repository

import "errors"

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("record not found")

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
