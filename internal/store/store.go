// Package store persists the tracking tables through gorm.
//
// Every failure is wrapped in ErrRead or ErrWrite so callers can apply their
// propagation policy with errors.Is without knowing about gorm.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrRead            = errors.New("store read failure")
	ErrWrite           = errors.New("store write failure")
	ErrPatientNotFound = errors.New("patient not found")
	ErrNotFound        = errors.New("record not found")
)

// Store is the gorm-backed data store.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func readErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRead, err)
}

func writeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrWrite, err)
}
