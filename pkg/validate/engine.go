// Package validate runs the structural checks on the members of a batch and
// records the verdict.
package validate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/status"
	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/rs/zerolog/log"
)

// maxLineSize bounds a single line of a member file.
const maxLineSize = 16 * 1024 * 1024

type Kind string

const (
	KindEncoding  Kind = "invalid encoding"
	KindColumns   Kind = "invalid column count"
	KindEnclosing Kind = "invalid enclosing"
)

// Finding is one structural error in a member file. Line is 1-based and zero
// for encoding findings.
type Finding struct {
	Kind   Kind       `json:"kind"`
	Type   batch.Type `json:"type"`
	Path   string     `json:"path"`
	Line   int        `json:"line,omitempty"`
	Detail string     `json:"detail"`
}

// Message renders the finding for logs, prefixed with its kind and the batch.
func (f Finding) Message(key batch.Key) string {
	loc := f.Path
	if f.Line > 0 {
		loc = fmt.Sprintf("%s line %d", f.Path, f.Line)
	}
	return fmt.Sprintf("%s in batch %s: %s %s: %s", f.Kind, key, f.Type, loc, f.Detail)
}

// Report is the outcome of one validation run.
type Report struct {
	Key      batch.Key
	Status   batch.Status
	Findings []Finding
	// Err is the fault that forced ERROR, or the relocation failure that
	// followed a persisted VALID or INVALID.
	Err error
}

// Engine validates batches against a schema.
type Engine struct {
	Store            store.Store
	Schema           *batch.Schema
	Status           *status.Controller
	RequiredEncoding string
}

func NewEngine(s store.Store, schema *batch.Schema, ctrl *status.Controller, requiredEncoding string) *Engine {
	if requiredEncoding == "" {
		requiredEncoding = schema.Encoding
	}
	return &Engine{Store: s, Schema: schema, Status: ctrl, RequiredEncoding: requiredEncoding}
}

// Validate checks every member of b, persists VALID, INVALID or ERROR through
// the status controller and relocates VALID and INVALID batches.
//
// The returned error is the same as Report.Err.
func (e *Engine) Validate(ctx context.Context, b *batch.Batch) (*Report, error) {
	key := b.Key()
	report := &Report{Key: key}

	findings, err := e.check(ctx, b)
	if err != nil {
		return e.fail(ctx, b, report, err)
	}
	report.Findings = findings

	verdict := batch.StatusValid
	if len(findings) > 0 {
		verdict = batch.StatusInvalid
	}
	for _, f := range findings {
		log.Error().
			Str("customer", b.Customer()).
			Time("timestamp", b.Timestamp()).
			Str("type", string(f.Type)).
			Str("path", f.Path).
			Int("line", f.Line).
			Msg(f.Message(key))
	}

	if err := e.Status.Finalize(ctx, b, verdict); err != nil {
		if errors.Is(err, status.ErrRelocate) {
			report.Status = verdict
			report.Err = err
			log.Error().Err(err).Str("batch", key.String()).Str("status", verdict.String()).Msg("Relocation failed")
			return report, err
		}
		return e.fail(ctx, b, report, err)
	}
	report.Status = verdict
	log.Info().
		Str("customer", b.Customer()).
		Time("timestamp", b.Timestamp()).
		Str("status", verdict.String()).
		Int("findings", len(findings)).
		Msg("Validated batch")
	return report, nil
}

func (e *Engine) fail(ctx context.Context, b *batch.Batch, report *Report, cause error) (*Report, error) {
	log.Error().Err(cause).Str("batch", report.Key.String()).Msg("Exception while validating batch")
	report.Status = batch.StatusError
	report.Findings = nil
	err := fmt.Errorf("failed to validate batch %s: %w", report.Key, cause)
	// ERROR must be recorded even when the fault is a cancellation.
	if serr := e.Status.Finalize(context.WithoutCancel(ctx), b, batch.StatusError); serr != nil {
		log.Error().Err(serr).Str("batch", report.Key.String()).Msg("Could not record ERROR status")
		err = errors.Join(err, serr)
	}
	report.Err = err
	return report, err
}

// check returns the structural findings of all members. Any other problem is
// returned as an error.
func (e *Engine) check(ctx context.Context, b *batch.Batch) ([]Finding, error) {
	types := make([]batch.Type, 0, len(b.Members))
	for t := range b.Members {
		if !e.Schema.Recognized(t) {
			return nil, fmt.Errorf("member %s has unrecognized type %q", b.Members[t], t)
		}
		types = append(types, t)
	}
	order := map[batch.Type]int{}
	for i, t := range e.Schema.Types() {
		order[t] = i
	}
	sort.Slice(types, func(i, j int) bool { return order[types[i]] < order[types[j]] })

	var findings []Finding
	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fs, err := e.checkMember(ctx, t, b.Members[t])
		if err != nil {
			return nil, err
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func (e *Engine) checkMember(ctx context.Context, t batch.Type, path string) ([]Finding, error) {
	content, err := e.Store.Download(ctx, path)
	if err != nil {
		return nil, err
	}

	enc := content.ContentEncoding
	if enc == "" {
		enc = DetectEncoding(content.Data)
	}
	if !SameEncoding(enc, e.RequiredEncoding) {
		return []Finding{{
			Kind:   KindEncoding,
			Type:   t,
			Path:   path,
			Detail: fmt.Sprintf("got %s, want %s", enc, e.RequiredEncoding),
		}}, nil
	}

	text, err := DecodeText(content.Data, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	columns, _ := e.Schema.Columns(t)
	return e.checkLines(t, path, text, columns)
}

// checkLines stops at the first violation of a member. A field is enclosed
// when it starts and ends with the quote, so a lone quote passes.
func (e *Engine) checkLines(t batch.Type, path, text string, columns int) ([]Finding, error) {
	sep, quote := e.Schema.ColumnSeparator, e.Schema.Enclosing

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), sep)
		if len(fields) != columns {
			return []Finding{{
				Kind:   KindColumns,
				Type:   t,
				Path:   path,
				Line:   line,
				Detail: fmt.Sprintf("expected %d fields, got %d", columns, len(fields)),
			}}, nil
		}
		for i, f := range fields {
			if !strings.HasPrefix(f, quote) || !strings.HasSuffix(f, quote) {
				return []Finding{{
					Kind:   KindEnclosing,
					Type:   t,
					Path:   path,
					Line:   line,
					Detail: fmt.Sprintf("field %d is not enclosed in %s", i+1, quote),
				}}, nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil, nil
}
