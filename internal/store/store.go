// Package store is the credential store: users, linked provider accounts,
// sessions, verification records and the audit log. Mutations are
// last-writer-wins; no operation needs a serializable transaction.
package store

import (
	"errors"

	"github.com/hugh/tubelink/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

type Store struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

func New(db *gorm.DB, encryptor *crypto.Encryptor) *Store {
	return &Store{db: db, encryptor: encryptor}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
