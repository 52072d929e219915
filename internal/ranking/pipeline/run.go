// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/database"
	"github.com/tomtom215/marquee/internal/events"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/dataset"
	"github.com/tomtom215/marquee/internal/ranking/evaluate"
	"github.com/tomtom215/marquee/internal/ranking/features"
	"github.com/tomtom215/marquee/internal/ranking/ranker"
	"github.com/tomtom215/marquee/internal/ranking/registry"
	"github.com/tomtom215/marquee/internal/ranking/sampling"
	"github.com/tomtom215/marquee/internal/ranking/split"
)

// ReportFile is written to the reports directory after each run.
const ReportFile = "metrics.json"

// partition is one encoded split.
type partition struct {
	rows   []ranking.CandidateRow
	groups []int
	set    ranker.TrainSet
}

//nolint:gocyclo // linear sequence of stages
func (t *Trainer) run(ctx context.Context, runID string, logger zerolog.Logger) (*Result, error) {
	cfg := t.cfg

	var (
		catalog *ranking.Catalog
		evts    []ranking.Event
	)
	err := stage(&logger, "load", func() error {
		var err error
		catalog, evts, err = t.load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		rows    []ranking.CandidateRow
		refYear int
	)
	err = stage(&logger, "build", func() error {
		var err error
		rows, refYear, err = t.build(ctx, evts, catalog, logger)
		return err
	})
	if err != nil {
		return nil, err
	}

	aggs := dataset.ComputeAggregates(evts, cfg.Features.HistoryWindowDays)
	timed(&logger, "aggregates", func() {
		aggs.Apply(rows)
	})

	var train, val, test partition
	err = stage(&logger, "split", func() error {
		parts, err := split.Split(rows, split.Options{
			Strategy: split.Strategy(cfg.Split.Strategy),
			Level:    split.Level(cfg.Split.Level),
			Fractions: split.Fractions{
				Train: cfg.Split.TrainFrac,
				Val:   cfg.Split.ValFrac,
				Test:  cfg.Split.TestFrac,
			},
			Seed: cfg.Training.Seed,
		})
		if err != nil {
			return err
		}
		train.rows, train.groups = split.Contiguous(parts.Train)
		val.rows, val.groups = split.Contiguous(parts.Val)
		test.rows, test.groups = split.Contiguous(parts.Test)
		if len(train.rows) == 0 {
			return ErrEmptyTrainingSet
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	counts := RowCounts{All: len(rows), Train: len(train.rows), Val: len(val.rows), Test: len(test.rows)}
	metrics.RecordDatasetRows(counts.All, counts.Train, counts.Val, counts.Test)
	logger.Info().
		Int("rows", counts.All).
		Int("train", counts.Train).
		Int("val", counts.Val).
		Int("test", counts.Test).
		Msg("Dataset split")

	var enc *features.Encoder
	timed(&logger, "encode", func() {
		enc = features.Fit(records(train.rows), ranking.FeatureFields())
		for _, p := range []*partition{&train, &val, &test} {
			p.set = encodePartition(enc, p)
		}
	})

	params := t.params()
	var model ranker.Model
	err = stage(&logger, "fit", func() error {
		var valid *ranker.TrainSet
		if len(val.rows) > 0 {
			valid = &val.set
		}
		var err error
		model, err = t.deps.Ranker.Fit(ctx, train.set, valid, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	var valReport, testReport evaluate.Report
	err = stage(&logger, "evaluate", func() error {
		var err error
		if valReport, err = score(ctx, model, &val, params.EvalK); err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		if testReport, err = score(ctx, model, &test, params.EvalK); err != nil {
			return fmt.Errorf("test: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordModelQuality("val", valReport.NDCG, valReport.MAP)
	metrics.RecordModelQuality("test", testReport.NDCG, testReport.MAP)

	summary := registry.Metrics{
		Val:           valReport,
		Test:          testReport,
		K:             params.EvalK,
		BestIteration: model.BestIteration(),
	}

	var meta registry.Metadata
	err = stage(&logger, "save", func() error {
		schema := enc.Schema()
		var err error
		meta, err = t.deps.Registry.Save(ctx, model, registry.Metadata{
			ModelType:       t.deps.Ranker.Name(),
			BestIteration:   model.BestIteration(),
			TrainRows:       counts.Train,
			ValRows:         counts.Val,
			TestRows:        counts.Test,
			Features:        schema.Features,
			Schema:          schema,
			LabelDefinition: ranking.LabelDefinition,
			Metrics:         summary,
			ReferenceYear:   refYear,
			RunID:           runID,
		})
		if err != nil {
			return err
		}
		if keep := cfg.Registry.Keep; keep > 0 {
			removed, err := t.deps.Registry.Prune(ctx, keep)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			if len(removed) > 0 {
				logger.Info().Ints("versions", removed).Msg("Pruned old model versions")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if t.deps.Store != nil {
		err = stage(&logger, "featurestore", func() error {
			return t.deps.Store.Replace(ctx, aggs, meta.Version)
		})
		if err != nil {
			return nil, err
		}
	}

	err = stage(&logger, "export", func() error {
		if err := t.export(ctx, &train, &val, &test); err != nil {
			return err
		}
		return writeReport(cfg.Data.ReportsDir, summary)
	})
	if err != nil {
		return nil, err
	}

	if t.deps.Publisher != nil {
		err := stage(&logger, "publish", func() error {
			return t.deps.Publisher.PublishModel(ctx, events.ModelPublished{
				Version:   meta.Version,
				ModelType: meta.ModelType,
				RunID:     runID,
				CreatedAt: meta.CreatedAt,
				ValNDCG:   valReport.NDCG,
				TestNDCG:  testReport.NDCG,
			})
		})
		if err != nil {
			logger.Warn().Err(err).Int("version", meta.Version).Msg("Model saved but event publish failed")
		}
	}

	return &Result{
		RunID:   runID,
		Version: meta.Version,
		Rows:    counts,
		Metrics: summary,
		Meta:    meta,
	}, nil
}

func (t *Trainer) load(ctx context.Context) (*ranking.Catalog, []ranking.Event, error) {
	data := t.cfg.Data
	if t.deps.Loader != nil && data.UsersPath != "" && data.ItemsPath != "" && data.InteractionsPath != "" {
		_, err := t.deps.Loader.LoadCSV(ctx, database.Sources{
			UsersPath:        data.UsersPath,
			ItemsPath:        data.ItemsPath,
			InteractionsPath: data.InteractionsPath,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	users, err := t.deps.Source.Users(ctx)
	if err != nil {
		return nil, nil, err
	}
	items, err := t.deps.Source.Items(ctx)
	if err != nil {
		return nil, nil, err
	}
	evts, err := t.deps.Source.Events(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ranking.NewCatalog(users, items), evts, nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (t *Trainer) build(ctx context.Context, evts []ranking.Event, catalog *ranking.Catalog, logger zerolog.Logger) ([]ranking.CandidateRow, int, error) {
	cfg := t.cfg
	strategy, err := sampling.ParseStrategy(cfg.Sampling.Strategy)
	if err != nil {
		return nil, 0, err
	}
	var pop *sampling.Popularity
	if strategy == sampling.StrategyPopularity {
		pop = sampling.EstimatePopularity(evts)
	}
	sampler, err := sampling.NewSampler(sampling.Config{
		Strategy:         strategy,
		MaxRetriesFactor: cfg.Sampling.MaxRetriesFactor,
	}, catalog.ItemIDs(), pop)
	if err != nil {
		return nil, 0, err
	}
	builder, err := dataset.NewBuilder(dataset.Config{
		NegativesPerPositive: cfg.Sampling.NegativesPerPositive,
		Seed:                 cfg.Training.Seed,
		Workers:              cfg.Sampling.Workers,
		ReferenceYear:        cfg.Features.ReferenceYear,
	}, sampler, logger)
	if err != nil {
		return nil, 0, err
	}
	rows, err := builder.Build(ctx, evts, catalog)
	return rows, builder.ReferenceYear(), err
}

func (t *Trainer) params() ranker.Params {
	tc := t.cfg.Training
	p := ranker.DefaultParams()
	p.Seed = tc.Seed
	if tc.Epochs > 0 {
		p.Epochs = tc.Epochs
	}
	if tc.LearningRate > 0 {
		p.LearningRate = tc.LearningRate
	}
	if tc.L2 >= 0 {
		p.L2 = tc.L2
	}
	if tc.EarlyStoppingRounds >= 0 {
		p.EarlyStoppingRounds = tc.EarlyStoppingRounds
	}
	if tc.MaxPairsPerGroup >= 0 {
		p.MaxPairsPerGroup = tc.MaxPairsPerGroup
	}
	if k := t.cfg.Features.EvalK; k > 0 {
		p.EvalK = k
	}
	return p
}

func (t *Trainer) export(ctx context.Context, train, val, test *partition) error {
	dir := t.cfg.Data.ProcessedDir
	if dir == "" || t.deps.Exporter == nil {
		return nil
	}
	parts := []struct {
		name string
		p    *partition
	}{{"train", train}, {"val", val}, {"test", test}}
	for _, part := range parts {
		if err := t.deps.Exporter.ExportParquet(ctx, filepath.Join(dir, part.name+".parquet"), part.p.rows); err != nil {
			return fmt.Errorf("%s partition: %w", part.name, err)
		}
	}
	return nil
}

func writeReport(dir string, summary registry.Metrics) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create reports directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ReportFile), data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func records(rows []ranking.CandidateRow) []features.Record {
	out := make([]features.Record, len(rows))
	for i := range rows {
		out[i] = rows[i].Record()
	}
	return out
}

func encodePartition(enc *features.Encoder, p *partition) ranker.TrainSet {
	y := make([]float64, len(p.rows))
	for i := range p.rows {
		y[i] = float64(p.rows[i].Grade)
	}
	return ranker.TrainSet{
		X:          enc.Encode(records(p.rows)).Rows,
		Y:          y,
		GroupSizes: p.groups,
	}
}

func score(ctx context.Context, model ranker.Model, p *partition, k int) (evaluate.Report, error) {
	if len(p.rows) == 0 {
		return evaluate.Report{K: k}, nil
	}
	scores, err := model.Predict(p.set.X)
	if err != nil {
		return evaluate.Report{}, err
	}
	scored := make([]evaluate.Scored, len(p.rows))
	for i := range p.rows {
		scored[i] = evaluate.Scored{
			Group: p.rows[i].Group(),
			Grade: p.rows[i].Grade,
			Score: scores[i],
		}
	}
	return evaluate.Evaluate(ctx, scored, k)
}
