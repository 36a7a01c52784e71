package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/store/storetest"
)

type recordingMover struct {
	folders []string
	err     error
}

func (m *recordingMover) MoveBatch(ctx context.Context, b *batch.Batch, folder string) error {
	m.folders = append(m.folders, folder)
	return m.err
}

func TestNeedsValidation(t *testing.T) {
	cases := map[batch.Status]bool{
		batch.StatusNone:    true,
		batch.StatusError:   true,
		batch.StatusRunning: false,
		batch.StatusValid:   false,
		batch.StatusInvalid: false,
	}
	for st, want := range cases {
		if got := NeedsValidation(st); got != want {
			t.Errorf("NeedsValidation(%q) = %v, want %v", st, got, want)
		}
	}
}

func TestController_LoadAndSetStatus(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	storetest.Put(t, s, "input/c_20230101_0900_type1.csv", "", nil)
	c := NewController(s, batch.DefaultSchema(), nil, 0)

	b := batch.New("c", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	b.Members["type1"] = "input/c_20230101_0900_type1.csv"

	if err := c.SetStatus(ctx, b, batch.StatusInvalid); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List(ctx, "input/")
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Metadata[StatusKey] != "INVALID" {
		t.Fatalf("status not persisted: %v", entries[0].Metadata)
	}

	loaded := batch.New("c", b.Timestamp())
	if err := c.Load(loaded, entries[0].Metadata); err != nil {
		t.Fatal(err)
	}
	if loaded.Status != batch.StatusInvalid {
		t.Errorf("loaded status %v", loaded.Status)
	}

	if err := c.Load(loaded, map[string]string{"Status": "bogus"}); !errors.Is(err, batch.ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
	if err := c.Load(loaded, nil); err != nil || loaded.Status != batch.StatusNone {
		t.Errorf("nil metadata: %v, %v", loaded.Status, err)
	}
}

func TestController_SetStatusWithoutReferenceIsNoop(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	storetest.Put(t, s, "input/c_20230101_0900_type2.csv", "", nil)
	c := NewController(s, batch.DefaultSchema(), nil, 0)

	b := batch.New("c", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	b.Members["type2"] = "input/c_20230101_0900_type2.csv"
	if err := c.SetStatus(ctx, b, batch.StatusValid); err != nil {
		t.Fatal(err)
	}
	entries, _ := s.List(ctx, "input/")
	if len(entries[0].Metadata) != 0 {
		t.Errorf("non-reference member must not receive metadata: %v", entries[0].Metadata)
	}
}

func TestController_ClaimAndEligible(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	storetest.Put(t, s, "input/c_20230101_0900_type1.csv", "", nil)
	c := NewController(s, batch.DefaultSchema(), nil, time.Hour)
	now := time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	b := batch.New("c", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	b.Members["type1"] = "input/c_20230101_0900_type1.csv"
	if err := c.Claim(ctx, b); err != nil {
		t.Fatal(err)
	}
	if b.Status != batch.StatusRunning || b.ClaimID == "" || !b.ClaimedAt.Equal(now) {
		t.Fatalf("unexpected claimed batch %+v", b)
	}

	entries, _ := s.List(ctx, "input/")
	reloaded := batch.New("c", b.Timestamp())
	if err := c.Load(reloaded, entries[0].Metadata); err != nil {
		t.Fatal(err)
	}
	if reloaded.ClaimID != b.ClaimID || !reloaded.ClaimedAt.Equal(now) {
		t.Errorf("claim record not persisted: %+v", reloaded)
	}

	if c.Eligible(reloaded) {
		t.Error("fresh RUNNING batch must not be eligible")
	}
	now = now.Add(2 * time.Hour)
	if !c.Eligible(reloaded) {
		t.Error("stale RUNNING batch must be eligible")
	}

	c.StaleAfter = 0
	if c.Eligible(reloaded) {
		t.Error("RUNNING batch must not be eligible when recovery is disabled")
	}
}

func TestController_Finalize(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)

	for _, c := range []struct {
		status batch.Status
		folder string
	}{
		{batch.StatusValid, "valid"},
		{batch.StatusInvalid, "invalid"},
		{batch.StatusError, ""},
	} {
		t.Run(c.status.String(), func(t *testing.T) {
			s := storetest.New()
			storetest.Put(t, s, "input/c_20230101_0900_type1.csv", "", nil)
			m := &recordingMover{}
			ctrl := NewController(s, batch.DefaultSchema(), m, 0)
			b := batch.New("c", ts)
			b.Members["type1"] = "input/c_20230101_0900_type1.csv"

			if err := ctrl.Finalize(ctx, b, c.status); err != nil {
				t.Fatal(err)
			}
			if c.folder == "" {
				if len(m.folders) != 0 {
					t.Errorf("ERROR must not relocate, got %v", m.folders)
				}
				return
			}
			if len(m.folders) != 1 || m.folders[0] != c.folder {
				t.Errorf("expected move to %s, got %v", c.folder, m.folders)
			}
		})
	}
}

func TestController_FinalizeKeepsStatusOnMoveFailure(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	storetest.Put(t, s, "input/c_20230101_0900_type1.csv", "", nil)
	m := &recordingMover{err: errors.New("boom")}
	ctrl := NewController(s, batch.DefaultSchema(), m, 0)
	b := batch.New("c", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	b.Members["type1"] = "input/c_20230101_0900_type1.csv"

	if err := ctrl.Finalize(ctx, b, batch.StatusValid); !errors.Is(err, ErrRelocate) {
		t.Fatalf("expected ErrRelocate, got %v", err)
	}
	entries, _ := s.List(ctx, "input/")
	if entries[0].Metadata[StatusKey] != "VALID" {
		t.Errorf("status should remain VALID, got %v", entries[0].Metadata)
	}
}

func TestController_FinalizeRejectsNonTerminal(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	storetest.Put(t, s, "input/c_20230101_0900_type1.csv", "", nil)
	m := &recordingMover{}
	ctrl := NewController(s, batch.DefaultSchema(), m, 0)
	b := batch.New("c", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	b.Members["type1"] = "input/c_20230101_0900_type1.csv"

	for _, st := range []batch.Status{batch.StatusNone, batch.StatusRunning} {
		if err := ctrl.Finalize(ctx, b, st); !errors.Is(err, ErrNotTerminal) {
			t.Errorf("Finalize(%q): expected ErrNotTerminal, got %v", st, err)
		}
	}
	entries, _ := s.List(ctx, "input/")
	if entries[0].Metadata[StatusKey] != "" || len(m.folders) != 0 {
		t.Errorf("nothing should be written or moved: %v %v", entries[0].Metadata, m.folders)
	}
}
