// Package storage archives the original statement files behind committed imports.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("archived file not found")

// FileInfo describes an archived statement.
type FileInfo struct {
	ImportID  uuid.UUID `json:"import_id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"` // hex sha256 of the content
	Path      string    `json:"path"`     // relative to the user directory
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage keeps one file per import, grouped by user.
type Storage interface {
	// Save stores r as the source of importID. rows is the committed row count.
	Save(ctx context.Context, userID, importID uuid.UUID, filename string, rows int, r io.Reader) (*FileInfo, error)

	// Open returns the archived content of an import.
	Open(ctx context.Context, userID, importID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// GetInfo returns metadata without opening the content.
	GetInfo(ctx context.Context, userID, importID uuid.UUID) (*FileInfo, error)

	// FindByChecksum reports an earlier import of identical content.
	FindByChecksum(ctx context.Context, userID uuid.UUID, checksum string) (*FileInfo, bool, error)

	// List returns every archived import of a user.
	List(ctx context.Context, userID uuid.UUID) ([]*FileInfo, error)

	Delete(ctx context.Context, userID, importID uuid.UUID) error
}
