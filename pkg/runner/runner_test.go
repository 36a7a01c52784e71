package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/listing"
	"github.com/go-go-golems/batch-validator/pkg/relocate"
	"github.com/go-go-golems/batch-validator/pkg/status"
	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/go-go-golems/batch-validator/pkg/store/storetest"
	"github.com/go-go-golems/batch-validator/pkg/validate"
)

const line = "\"1\",\"2\",\"3\",\"4\"\n"

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, *batch.Batch) error { return errors.New("broker down") }
func (failingDispatcher) Close() error                                 { return nil }

type cancellingDispatcher struct{ cancel context.CancelFunc }

func (d cancellingDispatcher) Dispatch(ctx context.Context, _ *batch.Batch) error {
	d.cancel()
	return ctx.Err()
}
func (cancellingDispatcher) Close() error { return nil }

func newRunner(t *testing.T, d dispatch.Dispatcher) (*Runner, *store.FSStore) {
	t.Helper()
	schema, err := batch.ParseSchema([]byte("types:\n  - {name: type1, columns: 4}\n  - {name: type2, columns: 4}\n"))
	if err != nil {
		t.Fatal(err)
	}
	s := storetest.New()
	for _, c := range []string{"a", "b"} {
		storetest.Put(t, s, "input/"+c+"_20230101_0900_type1.csv", line, nil)
		storetest.Put(t, s, "input/"+c+"_20230101_0900_type2.csv", line, nil)
	}
	remote := storetest.NewFaulty(s)
	remote.HonorContext = true
	ctrl := status.NewController(remote, schema, relocate.NewMover(remote, time.Millisecond, 2), 0)
	return &Runner{
		Scanner:    listing.NewScanner(remote, schema, ctrl, "input"),
		Status:     ctrl,
		Engine:     validate.NewEngine(remote, schema, ctrl, ""),
		Dispatcher: d,
	}, s
}

func statusOf(t *testing.T, s *store.FSStore, path string) string {
	t.Helper()
	entries, err := s.List(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry at %s, got %v", path, entries)
	}
	return entries[0].Metadata[status.StatusKey]
}

func TestTrigger_ReadyOnlyDoesNotClaim(t *testing.T) {
	r, s := newRunner(t, nil)
	res, err := r.Trigger(context.Background(), TriggerOptions{Customers: []string{"b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Ready) != 1 || res.Ready[0].Customer() != "b" || len(res.Claimed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if st := statusOf(t, s, "input/b_20230101_0900_type1.csv"); st != "" {
		t.Errorf("status should be untouched, got %q", st)
	}
}

func TestTrigger_ClaimDispatchAndConsume(t *testing.T) {
	ctx := context.Background()
	ch := dispatch.NewChannel(4)
	r, s := newRunner(t, ch)

	res, err := r.Trigger(ctx, TriggerOptions{Dispatch: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Claimed) != 2 {
		t.Fatalf("expected 2 claimed batches, got %+v", res)
	}
	if st := statusOf(t, s, "input/a_20230101_0900_type1.csv"); st != "RUNNING" {
		t.Errorf("expected RUNNING, got %q", st)
	}

	// RUNNING batches are not surfaced again.
	again, err := r.Trigger(ctx, TriggerOptions{Dispatch: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Ready) != 0 {
		t.Errorf("claimed batches must not be rediscovered, got %d", len(again.Ready))
	}

	_ = ch.Close()
	if err := r.Consume(ctx, ch, 2); err != nil {
		t.Fatal(err)
	}
	for _, c := range []string{"a", "b"} {
		if st := statusOf(t, s, "valid/input/"+c+"_20230101_0900_type1.csv"); st != "VALID" {
			t.Errorf("batch %s: expected VALID in valid/, got %q", c, st)
		}
	}
}

func TestTrigger_DispatchFailureRollsBackToError(t *testing.T) {
	ctx := context.Background()
	r, s := newRunner(t, failingDispatcher{})

	res, err := r.Trigger(ctx, TriggerOptions{Dispatch: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Claimed) != 0 || len(res.Failures) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if st := statusOf(t, s, "input/a_20230101_0900_type1.csv"); st != "ERROR" {
		t.Errorf("expected ERROR after failed dispatch, got %q", st)
	}

	retry, err := r.Trigger(ctx, TriggerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(retry.Ready) != 2 {
		t.Errorf("ERROR batches must be eligible again, got %d", len(retry.Ready))
	}
}

func TestTrigger_CancelledDispatchStillRecordsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, s := newRunner(t, cancellingDispatcher{cancel: cancel})

	res, err := r.Trigger(ctx, TriggerOptions{Dispatch: true, Customers: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0], context.Canceled) {
		t.Fatalf("unexpected failures %v", res.Failures)
	}
	if st := statusOf(t, s, "input/a_20230101_0900_type1.csv"); st != "ERROR" {
		t.Errorf("expected ERROR after cancelled dispatch, got %q", st)
	}
}

func TestTrigger_DispatchWithoutDispatcher(t *testing.T) {
	r, _ := newRunner(t, nil)
	if _, err := r.Trigger(context.Background(), TriggerOptions{Dispatch: true}); err == nil {
		t.Error("expected error")
	}
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	r, _ := newRunner(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.Schedule(ctx, 5*time.Millisecond, TriggerOptions{}); err != nil {
		t.Errorf("schedule returned %v", err)
	}
	if err := r.Schedule(context.Background(), 0, TriggerOptions{}); err == nil {
		t.Error("expected error for zero interval")
	}
}
