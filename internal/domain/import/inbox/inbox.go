// Package inbox imports every statement dropped into a directory without review:
// suggestions are accepted as staged and all rows are committed.
package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/pkg/storage"
)

const (
	FailedDir    = "failed"
	DuplicateDir = "duplicates"
)

var (
	ErrFileTooLarge     = errors.New("statement file too large")
	ErrAlreadyImported  = errors.New("statement already imported")
	ErrArchiveRequired  = errors.New("inbox needs an archive")
	ErrNoInboxDirectory = errors.New("inbox directory not set")
)

// SnapshotSource loads the categories and history for one pass.
type SnapshotSource func(ctx context.Context) (session.Snapshot, error)

// CommitterFactory returns the committer that records rows under importID.
type CommitterFactory func(importID uuid.UUID) session.Committer

type Config struct {
	Dir      string
	MaxBytes int64
	UserID   uuid.UUID
	Account  session.AccountContext
}

// Result counts the files handled by one pass.
type Result struct {
	Committed  int
	Rows       int
	Duplicates int
	Failed     int
}

// Processor drains an inbox directory. Committed files move into the archive; rejected
// ones into FailedDir or DuplicateDir under the inbox.
type Processor struct {
	cfg       Config
	pipeline  *session.Pipeline
	snapshots SnapshotSource
	committer CommitterFactory
	archive   storage.Storage
	metrics   *session.Metrics
	logger    *slog.Logger
}

func NewProcessor(cfg Config, pipeline *session.Pipeline, snapshots SnapshotSource, committer CommitterFactory, archive storage.Storage, logger *slog.Logger) (*Processor, error) {
	if cfg.Dir == "" {
		return nil, ErrNoInboxDirectory
	}
	if archive == nil {
		return nil, ErrArchiveRequired
	}
	if err := cfg.Account.Validate(); err != nil {
		return nil, err
	}
	return &Processor{
		cfg:       cfg,
		pipeline:  pipeline,
		snapshots: snapshots,
		committer: committer,
		archive:   archive,
		logger:    logger,
	}, nil
}

func (p *Processor) WithMetrics(m *session.Metrics) *Processor {
	p.metrics = m
	return p
}

// Run handles every regular file in the inbox, in directory order. Per-file failures
// are counted, not returned.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	var res Result

	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return res, fmt.Errorf("failed to read inbox: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return res, nil
	}

	snapshot, err := p.snapshots(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load snapshot: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rows, err := p.process(ctx, name, snapshot)
		switch {
		case err == nil:
			res.Committed++
			res.Rows += rows
		case errors.Is(err, ErrAlreadyImported):
			res.Duplicates++
			p.logger.Warn("skipping duplicate statement", "file", name, "error", err)
			p.move(name, DuplicateDir)
		default:
			res.Failed++
			p.logger.Warn("statement not imported", "file", name, "error", err)
			p.move(name, FailedDir)
		}
	}
	return res, nil
}

func (p *Processor) process(ctx context.Context, name string, snapshot session.Snapshot) (int, error) {
	path := filepath.Join(p.cfg.Dir, name)
	content, err := ReadFile(path, p.cfg.MaxBytes)
	if err != nil {
		return 0, err
	}

	prev, found, err := p.archive.FindByChecksum(ctx, p.cfg.UserID, storage.Checksum(content))
	if err != nil {
		return 0, fmt.Errorf("failed to check archive: %w", err)
	}
	if found {
		return 0, fmt.Errorf("%w as %s", ErrAlreadyImported, prev.ImportID)
	}

	importID := uuid.New()
	s, err := session.NewForAccount(p.pipeline, snapshot, p.cfg.Account, p.committer(importID), p.logger)
	if err != nil {
		return 0, err
	}
	s.WithMetrics(p.metrics)
	defer func() { _ = s.Cancel() }()

	if _, err := s.Upload(ctx, name, content); err != nil {
		return 0, err
	}
	rows, err := s.Commit(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := p.archive.Save(ctx, p.cfg.UserID, importID, name, rows, bytes.NewReader(content)); err != nil {
		// Rows are already committed; the file must still leave the inbox.
		p.logger.Error("committed statement could not be archived",
			"file", name,
			"import_id", importID,
			"error", err,
		)
		p.move(name, FailedDir)
		return rows, nil
	}
	if err := os.Remove(path); err != nil {
		p.logger.Error("failed to remove imported statement", "file", name, "error", err)
	}

	p.logger.Info("statement imported",
		"file", name,
		"import_id", importID,
		"rows", rows,
	)
	return rows, nil
}

func (p *Processor) move(name, dir string) {
	target := filepath.Join(p.cfg.Dir, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		p.logger.Error("failed to create inbox directory", "dir", target, "error", err)
		return
	}
	if err := os.Rename(filepath.Join(p.cfg.Dir, name), filepath.Join(target, name)); err != nil {
		p.logger.Error("failed to move statement", "file", name, "dir", dir, "error", err)
	}
}

// ReadFile reads a statement, refusing files over maxBytes.
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, path, info.Size(), maxBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}
	return content, nil
}
