// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package registry provides versioned persistence for trained ranking models.
//
// # Storage Format
//
// Each version lives in its own directory:
//
//	<base>/v<N>/model.gob.gz     gob-encoded model, gzip compressed
//	<base>/v<N>/model_meta.json  metadata, including the frozen feature schema
//
// The metadata carries a SHA-256 checksum of the uncompressed gob payload
// which is verified on every load. Versions are written to a temporary
// directory and renamed into place, so readers never observe a partial
// version.
//
// # Thread Safety
//
// All operations are safe for concurrent use within one process.
package registry

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/ranking/evaluate"
	"github.com/tomtom215/marquee/internal/ranking/features"
	"github.com/tomtom215/marquee/internal/ranking/ranker"
)

const (
	artifactFile = "model.gob.gz"
	metaFile     = "model_meta.json"
	versionDir   = "v"
)

var (
	// ErrModelNotFound is returned when a version does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrChecksumMismatch is returned when an artifact fails verification.
	ErrChecksumMismatch = errors.New("model checksum mismatch")
)

// Metrics is the evaluation summary stored with a model.
type Metrics struct {
	Val           evaluate.Report `json:"val"`
	Test          evaluate.Report `json:"test"`
	K             int             `json:"k"`
	BestIteration int             `json:"best_iteration"`
}

// Metadata describes a stored model.
type Metadata struct {
	// Version is assigned by Save and increases monotonically.
	Version int `json:"version"`

	// ModelType names the ranker that produced the model.
	ModelType string `json:"model_type"`

	CreatedAt time.Time `json:"created_at"`

	// BestIteration is the training iteration whose weights were kept.
	BestIteration int `json:"best_iteration"`

	TrainRows int `json:"train_rows"`
	ValRows   int `json:"val_rows"`
	TestRows  int `json:"test_rows"`

	// Features is the frozen column order.
	Features []string `json:"features"`

	// Schema rebuilds the encoder at serving time.
	Schema features.Schema `json:"schema"`

	LabelDefinition string  `json:"label_definition"`
	Metrics         Metrics `json:"metrics"`

	// ReferenceYear is the year item_age was computed against at training
	// time. Serving derives item_age from the same year.
	ReferenceYear int `json:"reference_year,omitempty"`

	// RunID correlates the model with the training run logs.
	RunID string `json:"run_id,omitempty"`

	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// Loaded is a model together with its metadata.
type Loaded struct {
	Model ranker.Model
	Meta  Metadata
}

// artifact wraps the model interface so gob records the concrete type.
type artifact struct {
	Model ranker.Model
}

// Registry is a directory of model versions.
type Registry struct {
	baseDir string
	mu      sync.RWMutex

	versions []int
}

// Open creates baseDir if needed and indexes existing versions.
func Open(baseDir string) (*Registry, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	r := &Registry{baseDir: baseDir}
	if err := r.scan(); err != nil {
		return nil, fmt.Errorf("scan registry: %w", err)
	}
	return r, nil
}

// Refresh re-indexes the directory, picking up versions written by other
// processes.
func (r *Registry) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scan()
}

func (r *Registry) scan() error {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return err
	}

	r.versions = r.versions[:0]
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, ok := parseVersionDir(entry.Name())
		if !ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.baseDir, entry.Name(), metaFile)); err != nil {
			continue
		}
		r.versions = append(r.versions, v)
	}
	sort.Ints(r.versions)
	return nil
}

// parseVersionDir extracts N from a directory named like "v12".
func parseVersionDir(name string) (int, bool) {
	if !strings.HasPrefix(name, versionDir) {
		return 0, false
	}
	var v int
	if _, err := fmt.Sscanf(name[len(versionDir):], "%d", &v); err != nil || v <= 0 {
		return 0, false
	}
	if fmt.Sprintf("%s%d", versionDir, v) != name {
		return 0, false
	}
	return v, true
}

// Save stores model as the next version and returns the completed metadata.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (r *Registry) Save(ctx context.Context, model ranker.Model, meta Metadata) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(artifact{Model: model}); err != nil {
		return Metadata{}, fmt.Errorf("encode model: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return Metadata{}, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return Metadata{}, fmt.Errorf("finalize compression: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	meta.Version = r.latestLocked() + 1
	meta.Checksum = hex.EncodeToString(hash[:])
	meta.SizeBytes = int64(compressed.Len())
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	if meta.BestIteration == 0 {
		meta.BestIteration = model.BestIteration()
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Metadata{}, fmt.Errorf("encode metadata: %w", err)
	}

	tmp, err := os.MkdirTemp(r.baseDir, ".staging-")
	if err != nil {
		return Metadata{}, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }() //nolint:errcheck // best-effort cleanup of staging directory

	if err := os.WriteFile(filepath.Join(tmp, artifactFile), compressed.Bytes(), 0o600); err != nil {
		return Metadata{}, fmt.Errorf("write model file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, metaFile), metaJSON, 0o600); err != nil {
		return Metadata{}, fmt.Errorf("write metadata file: %w", err)
	}
	if err := os.Rename(tmp, r.versionPath(meta.Version)); err != nil {
		return Metadata{}, fmt.Errorf("publish version %d: %w", meta.Version, err)
	}

	r.versions = append(r.versions, meta.Version)
	return meta, nil
}

// Load reads a model. Version 0 loads the latest version.
func (r *Registry) Load(ctx context.Context, version int) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if version == 0 {
		version = r.latestLocked()
		if version == 0 {
			return nil, fmt.Errorf("%w: registry is empty", ErrModelNotFound)
		}
	}

	meta, err := r.readMeta(version)
	if err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(filepath.Join(r.versionPath(version), artifactFile)) //nolint:gosec // path is built from a version number
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != meta.Checksum {
		return nil, fmt.Errorf("%w: version %d expected %s, got %s", ErrChecksumMismatch, version, meta.Checksum, checksum)
	}

	var a artifact
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("decode model: version %d has no model", version)
	}

	return &Loaded{Model: a.Model, Meta: meta}, nil
}

// Meta reads the metadata of one version without loading the model.
func (r *Registry) Meta(version int) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readMeta(version)
}

func (r *Registry) readMeta(version int) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(r.versionPath(version), metaFile)) //nolint:gosec // path is built from a version number
	if errors.Is(err, os.ErrNotExist) {
		return Metadata{}, fmt.Errorf("%w: version %d", ErrModelNotFound, version)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

// Latest returns the newest version number, or false when empty.
func (r *Registry) Latest() (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := r.latestLocked()
	return v, v > 0
}

func (r *Registry) latestLocked() int {
	if len(r.versions) == 0 {
		return 0
	}
	return r.versions[len(r.versions)-1]
}

// List returns metadata for all versions, oldest first. Versions whose
// metadata cannot be read are skipped.
func (r *Registry) List(ctx context.Context) ([]Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.versions))
	for _, v := range r.versions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := r.readMeta(v)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Delete removes one version.
func (r *Registry) Delete(ctx context.Context, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := sort.SearchInts(r.versions, version)
	if idx == len(r.versions) || r.versions[idx] != version {
		return fmt.Errorf("%w: version %d", ErrModelNotFound, version)
	}
	if err := os.RemoveAll(r.versionPath(version)); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	r.versions = append(r.versions[:idx], r.versions[idx+1:]...)
	return nil
}

// Prune keeps the newest keep versions and returns the removed ones.
// keep below 1 is treated as 1.
func (r *Registry) Prune(ctx context.Context, keep int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keep < 1 {
		keep = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.versions) <= keep {
		return nil, nil
	}

	cut := len(r.versions) - keep
	var removed []int
	for _, v := range r.versions[:cut] {
		if err := os.RemoveAll(r.versionPath(v)); err != nil {
			r.versions = append([]int(nil), r.versions[len(removed):]...)
			return removed, fmt.Errorf("prune version %d: %w", v, err)
		}
		removed = append(removed, v)
	}
	r.versions = append([]int(nil), r.versions[cut:]...)
	return removed, nil
}

func (r *Registry) versionPath(version int) string {
	return filepath.Join(r.baseDir, fmt.Sprintf("%s%d", versionDir, version))
}
