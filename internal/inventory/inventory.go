// Package inventory supplies cluster membership from an external listing.
// Every call returns a fresh read so a long-running process sees membership
// changes on its next run.
package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"clustercfg/internal/codec"
	"clustercfg/internal/domain"

	"github.com/rs/zerolog/log"
)

// Source yields the current, unclassified membership listing
type Source interface {
	Snapshot(ctx context.Context) (*codec.Inventory, error)
}

// FileSource reads membership from an inventory file on every call
type FileSource struct {
	path     string
	importer codec.Importer
}

// NewFileSource creates a source for path. An empty format is inferred from
// the file extension: .json is OpsWorks, anything else is Ansible unless the
// document has a top-level nodes list.
func NewFileSource(path, format, group string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("inventory path is empty")
	}

	if format == "" {
		format = inferFormat(path)
	}

	importer, ok := codec.ForFormat(format, group)
	if !ok {
		return nil, fmt.Errorf("unknown inventory format %q", format)
	}

	return &FileSource{path: path, importer: importer}, nil
}

// Path returns the inventory file path
func (s *FileSource) Path() string {
	return s.path
}

// Snapshot re-reads and decodes the inventory file
func (s *FileSource) Snapshot(ctx context.Context) (*codec.Inventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	inv, err := s.importer.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", s.path, err)
	}

	log.Debug().
		Str("path", s.path).
		Str("format", s.importer.Format()).
		Int("entries", len(inv.Entries)).
		Msg("Inventory loaded")

	return inv, nil
}

// StaticSource serves a fixed listing, mainly for tests and one-off runs
type StaticSource struct {
	entries []domain.NodeRecord
	localID string
}

// NewStaticSource creates a source that always returns entries
func NewStaticSource(localID string, entries ...domain.NodeRecord) *StaticSource {
	return &StaticSource{entries: slices.Clone(entries), localID: localID}
}

// Snapshot returns a copy of the fixed listing
func (s *StaticSource) Snapshot(ctx context.Context) (*codec.Inventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := make([]domain.NodeRecord, len(s.entries))
	for i, e := range s.entries {
		entries[i] = e.WithRole(e.Role)
	}
	return &codec.Inventory{Entries: entries, LocalID: s.localID}, nil
}

func inferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "opsworks"
	}

	data, err := os.ReadFile(path)
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "nodes:") {
				return "yaml"
			}
		}
	}
	return "ansible"
}
