// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UnknownBucket is the vocabulary index of values not seen at fit time.
// It owns no column, so unknown values encode as all-zero indicators.
const UnknownBucket = -1

const columnSeparator = "="

// ErrSchemaMismatch indicates feature metadata that cannot rebuild an encoder.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// FieldSet names the categorical and numeric input fields.
type FieldSet struct {
	Categorical []string
	Numeric     []string
}

// Record is one row of raw encoder input. Missing map entries are allowed.
type Record struct {
	Categorical map[string]string
	Numeric     map[string]float64
}

// Matrix is a dense row-major matrix with named columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Schema is the serializable form of a fitted encoder.
type Schema struct {
	Features    []string `json:"features"`
	Categorical []string `json:"categorical"`
	Numeric     []string `json:"numeric"`
}

// Encoder maps records onto a frozen column layout. Safe for concurrent use.
type Encoder struct {
	fields  FieldSet
	vocab   map[string]map[string]int
	columns []string
	index   map[string]int
}

// ColumnName returns the indicator column name for a categorical value.
func ColumnName(field, value string) string {
	return field + columnSeparator + value
}

// Fit freezes vocabularies and column order from training records.
// Empty categorical values are treated as missing and never enter a vocabulary.
func Fit(records []Record, fields FieldSet) *Encoder {
	values := make(map[string]map[string]struct{}, len(fields.Categorical))
	for _, f := range fields.Categorical {
		values[f] = make(map[string]struct{})
	}
	for i := range records {
		for _, f := range fields.Categorical {
			if v := records[i].Categorical[f]; v != "" {
				values[f][v] = struct{}{}
			}
		}
	}

	var columns []string
	for _, f := range fields.Categorical {
		sorted := make([]string, 0, len(values[f]))
		for v := range values[f] {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		for _, v := range sorted {
			columns = append(columns, ColumnName(f, v))
		}
	}
	columns = append(columns, fields.Numeric...)

	return newEncoder(fields, columns)
}

// FromSchema rebuilds the encoder that produced s.
func FromSchema(s Schema) (*Encoder, error) {
	categorical := make(map[string]bool, len(s.Categorical))
	for _, f := range s.Categorical {
		categorical[f] = true
	}
	numeric := make(map[string]bool, len(s.Numeric))
	for _, f := range s.Numeric {
		numeric[f] = true
	}

	seen := make(map[string]bool, len(s.Features))
	for _, col := range s.Features {
		if seen[col] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, col)
		}
		seen[col] = true
		if numeric[col] {
			continue
		}
		field, _, ok := strings.Cut(col, columnSeparator)
		if !ok || !categorical[field] {
			return nil, fmt.Errorf("%w: column %q is neither numeric nor a known categorical indicator", ErrSchemaMismatch, col)
		}
	}

	fields := FieldSet{
		Categorical: append([]string(nil), s.Categorical...),
		Numeric:     append([]string(nil), s.Numeric...),
	}
	return newEncoder(fields, append([]string(nil), s.Features...)), nil
}

func newEncoder(fields FieldSet, columns []string) *Encoder {
	e := &Encoder{
		fields:  fields,
		vocab:   make(map[string]map[string]int, len(fields.Categorical)),
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for _, f := range fields.Categorical {
		e.vocab[f] = make(map[string]int)
	}
	for i, col := range columns {
		e.index[col] = i
		if field, value, ok := strings.Cut(col, columnSeparator); ok {
			if vocab, isCat := e.vocab[field]; isCat {
				vocab[value] = i
			}
		}
	}
	return e
}

// Schema exports the encoder for registry metadata.
func (e *Encoder) Schema() Schema {
	return Schema{
		Features:    e.Columns(),
		Categorical: append([]string(nil), e.fields.Categorical...),
		Numeric:     append([]string(nil), e.fields.Numeric...),
	}
}

// Columns returns a copy of the frozen column order.
func (e *Encoder) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Width returns the number of columns.
func (e *Encoder) Width() int {
	return len(e.columns)
}

// Lookup returns the column index of a categorical value, or UnknownBucket.
func (e *Encoder) Lookup(field, value string) int {
	if idx, ok := e.vocab[field][value]; ok {
		return idx
	}
	return UnknownBucket
}

// Vocabulary returns the sorted frozen values of a categorical field.
func (e *Encoder) Vocabulary(field string) []string {
	vocab := e.vocab[field]
	out := make([]string, 0, len(vocab))
	for v := range vocab {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Encode expands records and aligns them to the frozen columns.
func (e *Encoder) Encode(records []Record) Matrix {
	return e.Align(e.expand(records))
}

// expand one-hot encodes the values present in this batch, independent of
// the fitted vocabulary, and carries every numeric field any record has.
func (e *Encoder) expand(records []Record) Matrix {
	var columns []string
	index := make(map[string]int)
	add := func(col string) {
		if _, ok := index[col]; !ok {
			index[col] = len(columns)
			columns = append(columns, col)
		}
	}

	for _, f := range e.fields.Categorical {
		present := make(map[string]struct{})
		for i := range records {
			if v := records[i].Categorical[f]; v != "" {
				present[v] = struct{}{}
			}
		}
		sorted := make([]string, 0, len(present))
		for v := range present {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		for _, v := range sorted {
			add(ColumnName(f, v))
		}
	}

	numericSeen := make(map[string]struct{})
	for i := range records {
		for name := range records[i].Numeric {
			numericSeen[name] = struct{}{}
		}
	}
	for _, f := range e.fields.Numeric {
		if _, ok := numericSeen[f]; ok {
			add(f)
			delete(numericSeen, f)
		}
	}
	extra := make([]string, 0, len(numericSeen))
	for name := range numericSeen {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		add(name)
	}

	rows := make([][]float64, len(records))
	for i := range records {
		row := make([]float64, len(columns))
		for _, f := range e.fields.Categorical {
			if v := records[i].Categorical[f]; v != "" {
				row[index[ColumnName(f, v)]] = 1
			}
		}
		for name, v := range records[i].Numeric {
			row[index[name]] = v
		}
		rows[i] = row
	}
	return Matrix{Columns: columns, Rows: rows}
}

// Align re-expresses m in the frozen column order. Columns unknown to the
// schema are dropped and schema columns absent from m are zero-filled.
func (e *Encoder) Align(m Matrix) Matrix {
	source := make([]int, len(e.columns))
	pos := make(map[string]int, len(m.Columns))
	for i, col := range m.Columns {
		if _, dup := pos[col]; !dup {
			pos[col] = i
		}
	}
	for i, col := range e.columns {
		if j, ok := pos[col]; ok {
			source[i] = j
		} else {
			source[i] = -1
		}
	}

	rows := make([][]float64, len(m.Rows))
	for r, in := range m.Rows {
		out := make([]float64, len(e.columns))
		for i, j := range source {
			if j >= 0 && j < len(in) {
				out[i] = in[j]
			}
		}
		rows[r] = out
	}
	return Matrix{Columns: e.Columns(), Rows: rows}
}

// Decode reports which vocabulary value is active for each categorical field
// of an encoded vector. Fields whose value was unknown are omitted.
func (e *Encoder) Decode(vec []float64) map[string]string {
	out := make(map[string]string, len(e.fields.Categorical))
	for _, f := range e.fields.Categorical {
		for value, idx := range e.vocab[f] {
			if idx < len(vec) && vec[idx] != 0 {
				out[f] = value
				break
			}
		}
	}
	return out
}
