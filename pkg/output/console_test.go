package output

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/validate"
)

func TestVerdict(t *testing.T) {
	InitConsole(true)
	key := batch.Key{Customer: "cust1", Timestamp: time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)}
	rep := &validate.Report{
		Key:    key,
		Status: batch.StatusInvalid,
		Findings: []validate.Finding{
			{Kind: validate.KindColumns, Type: "type1", Path: "input/x.csv", Line: 3, Detail: "expected 4 fields, got 3"},
		},
	}
	got := Verdict(rep)
	want := "→ cust1 > 2023-01-01T09:00:00Z INVALID\n" +
		"    - invalid column count in batch cust1 > 2023-01-01T09:00:00Z: type1 input/x.csv line 3: expected 4 fields, got 3\n"
	if got != want {
		t.Errorf("got\n%q\nwant\n%q", got, want)
	}
}

func TestShortError(t *testing.T) {
	err := errors.New("failed to download blob x: GET https://acct/x\n--------------------------------------------------------------------------------\nRESPONSE 404: 404 The specified blob does not exist.\nERROR CODE: BlobNotFound\n")
	if got := ShortError(err); !strings.HasPrefix(got, "failed to download blob x") {
		t.Errorf("got %q", got)
	}
	if ShortError(nil) != "" {
		t.Error("nil error should render empty")
	}
}
