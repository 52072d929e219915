// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/features"
	"github.com/tomtom215/marquee/internal/ranking/ranker"
)

func testModel(bias float64) *ranker.LinearModel {
	return &ranker.LinearModel{
		Weights:   []float64{0.5, -1.25, bias},
		Mean:      []float64{0, 1, 2},
		Scale:     []float64{1, 1, 3},
		Iteration: 17,
	}
}

func testMeta() Metadata {
	return Metadata{
		ModelType: ranker.LinearRankerName,
		TrainRows: 100,
		ValRows:   20,
		TestRows:  20,
		Features:  []string{"genre=Drama", "hour", "item_age"},
		Schema: features.Schema{
			Features:    []string{"genre=Drama", "hour", "item_age"},
			Categorical: []string{"genre"},
			Numeric:     []string{"hour", "item_age"},
		},
		LabelDefinition: ranking.LabelDefinition,
		Metrics:         Metrics{K: 10, BestIteration: 17},
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name:  "creates directory if not exists",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "models") },
		},
		{
			name:  "uses existing directory",
			setup: func(t *testing.T) string { return t.TempDir() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Open(tt.setup(t))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, ok := reg.Latest(); ok {
				t.Error("Latest() reported a version in an empty registry")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	reg, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()

	saved, err := reg.Save(ctx, testModel(0.1), testMeta())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.Version != 1 || saved.Checksum == "" || saved.SizeBytes == 0 || saved.CreatedAt.IsZero() {
		t.Errorf("Save() metadata = %+v", saved)
	}
	if saved.BestIteration != 17 {
		t.Errorf("BestIteration = %d, want 17 from model", saved.BestIteration)
	}

	loaded, err := reg.Load(ctx, 0)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	lm, ok := loaded.Model.(*ranker.LinearModel)
	if !ok {
		t.Fatalf("Load() model type = %T", loaded.Model)
	}
	if lm.Weights[1] != -1.25 || lm.Scale[2] != 3 || lm.BestIteration() != 17 {
		t.Errorf("Load() model = %+v", lm)
	}
	if loaded.Meta.Checksum != saved.Checksum || len(loaded.Meta.Schema.Features) != 3 {
		t.Errorf("Load() metadata = %+v", loaded.Meta)
	}

	enc, err := features.FromSchema(loaded.Meta.Schema)
	if err != nil {
		t.Fatalf("FromSchema() error = %v", err)
	}
	if enc.Width() != lm.Width() {
		t.Errorf("encoder width %d != model width %d", enc.Width(), lm.Width())
	}
}

func TestMetadataFileContainsRequiredKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := reg.Save(context.Background(), testModel(0), testMeta()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "v1", metaFile))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	for _, key := range []string{"features", "best_iteration", "model_type", "created_at", "label_definition", "metrics", "checksum"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("metadata is missing %q", key)
		}
	}
}

func TestVersionsIncreaseAndSurviveReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		meta, err := reg.Save(ctx, testModel(float64(i)), testMeta())
		if err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
		if meta.Version != i {
			t.Errorf("Save(%d) version = %d", i, meta.Version)
		}
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if v, ok := reopened.Latest(); !ok || v != 3 {
		t.Errorf("Latest() = %d, %v, want 3", v, ok)
	}

	loaded, err := reopened.Load(ctx, 2)
	if err != nil {
		t.Fatalf("Load(2) error = %v", err)
	}
	if loaded.Model.(*ranker.LinearModel).Weights[2] != 2 {
		t.Errorf("Load(2) returned the wrong version")
	}

	list, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 || list[0].Version != 1 || list[2].Version != 3 {
		t.Errorf("List() = %d entries, first %d", len(list), list[0].Version)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()

	if _, err := reg.Load(ctx, 0); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(empty) error = %v, want ErrModelNotFound", err)
	}
	if _, err := reg.Load(ctx, 9); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(9) error = %v, want ErrModelNotFound", err)
	}

	if _, err := reg.Save(ctx, testModel(0), testMeta()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Replace the artifact with a different valid model.
	other, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := other.Save(ctx, testModel(42), testMeta()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	swapped, err := os.ReadFile(filepath.Join(other.baseDir, "v1", artifactFile))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "v1", artifactFile), swapped, 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if _, err := reg.Load(ctx, 1); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Load(tampered) error = %v, want ErrChecksumMismatch", err)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := reg.Save(ctx, testModel(float64(i)), testMeta()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if err := reg.Delete(ctx, 5); err != nil {
		t.Fatalf("Delete(5) error = %v", err)
	}
	if v, _ := reg.Latest(); v != 4 {
		t.Errorf("Latest() after delete = %d, want 4", v)
	}
	if err := reg.Delete(ctx, 5); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Delete(5) twice error = %v, want ErrModelNotFound", err)
	}

	removed, err := reg.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(removed) != 2 || removed[0] != 1 || removed[1] != 2 {
		t.Errorf("Prune() removed = %v, want [1 2]", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "v1")); !os.IsNotExist(err) {
		t.Errorf("v1 still on disk after prune")
	}

	// The next save continues from the latest remaining version.
	meta, err := reg.Save(ctx, testModel(9), testMeta())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if meta.Version != 5 {
		t.Errorf("Save() after prune version = %d, want 5", meta.Version)
	}
}

func TestParseVersionDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"v1", 1, true},
		{"v120", 120, true},
		{"v0", 0, false},
		{"v01", 0, false},
		{"version", 0, false},
		{".staging-123", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseVersionDir(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseVersionDir(%q) = %d, %v, want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRefreshSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	reader, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	writer, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := writer.Save(context.Background(), testModel(1), testMeta()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := reader.Latest(); ok {
		t.Fatal("reader saw the new version before Refresh")
	}
	if err := reader.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if v, ok := reader.Latest(); !ok || v != 1 {
		t.Errorf("Latest() = %d, %v; want 1, true", v, ok)
	}
}
