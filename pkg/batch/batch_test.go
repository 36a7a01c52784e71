package batch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestBatch_IsComplete(t *testing.T) {
	s := DefaultSchema()
	ts := time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("all types present", func(t *testing.T) {
		b := New("cust1", ts)
		for _, typ := range s.Types() {
			b.Members[typ] = "input/" + string(typ) + ".csv"
		}
		if !b.IsComplete(s) {
			t.Fatalf("expected complete batch, missing %v", b.Missing(s))
		}
	})

	t.Run("one type missing", func(t *testing.T) {
		b := New("cust1", ts)
		for _, typ := range s.Types()[1:] {
			b.Members[typ] = "input/" + string(typ) + ".csv"
		}
		if b.IsComplete(s) {
			t.Fatal("expected incomplete batch")
		}
		missing := b.Missing(s)
		if len(missing) != 1 || missing[0] != s.Reference() {
			t.Errorf("expected only the reference type missing, got %v", missing)
		}
	})

	t.Run("superset of types is complete", func(t *testing.T) {
		small := &Schema{FileTypes: []FileType{{Name: "a", Columns: 1}, {Name: "b", Columns: 1}}}
		b := New("cust1", ts)
		b.Members["a"] = "x"
		b.Members["b"] = "y"
		b.Members["c"] = "z"
		if !b.IsComplete(small) {
			t.Error("expected complete batch for superset of types")
		}
	})

	t.Run("empty path does not count", func(t *testing.T) {
		small := &Schema{FileTypes: []FileType{{Name: "a", Columns: 1}}}
		b := New("cust1", ts)
		b.Members["a"] = ""
		if b.IsComplete(small) {
			t.Error("expected empty path to be treated as missing")
		}
	})
}

func TestNew_TruncatesToMinuteUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	b := New("c", time.Date(2023, 1, 1, 10, 5, 42, 99, loc))
	want := time.Date(2023, 1, 1, 9, 5, 0, 0, time.UTC)
	if !b.Timestamp().Equal(want) || b.Timestamp().Location() != time.UTC {
		t.Errorf("got %v, want %v", b.Timestamp(), want)
	}
	if b.Key() != (Key{Customer: "c", Timestamp: want}) {
		t.Errorf("unexpected key %v", b.Key())
	}
}

func TestStatus(t *testing.T) {
	for _, st := range Statuses() {
		parsed, err := ParseStatus(st.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", st, err)
		}
		if parsed != st {
			t.Errorf("round trip of %v gave %v", st, parsed)
		}
	}

	if st, err := ParseStatus(""); err != nil || st != StatusNone {
		t.Errorf("empty status: got %v, %v", st, err)
	}
	if st, err := ParseStatus("valid"); err != nil || st != StatusValid {
		t.Errorf("lower-case status: got %v, %v", st, err)
	}
	if _, err := ParseStatus("DONE"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
	if StatusRunning.IsTerminal() || StatusNone.IsTerminal() {
		t.Error("RUNNING and none must not be terminal")
	}
	if !StatusError.IsTerminal() {
		t.Error("ERROR must be terminal")
	}
}

func TestPayload_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)
	b := New("cust1", ts)
	b.Members["type1"] = "input/cust1_20230101_0900_type1.csv"
	b.Members["type2"] = "input/cust1_20230101_0900_type2.csv"
	b.Status = StatusRunning
	b.ClaimID = "claim-1"
	b.ClaimedAt = ts.Add(time.Minute)

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Key() != b.Key() {
		t.Errorf("key: got %v, want %v", got.Key(), b.Key())
	}
	if got.Status != StatusRunning || got.ClaimID != "claim-1" || !got.ClaimedAt.Equal(b.ClaimedAt) {
		t.Errorf("unexpected decoded batch %+v", got)
	}
	if len(got.Members) != 2 || got.Members["type2"] != b.Members["type2"] {
		t.Errorf("members: got %v", got.Members)
	}
}

func TestPayload_AbsentStatus(t *testing.T) {
	b := New("cust1", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC))
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if v, ok := raw["status"]; !ok || v != nil {
		t.Errorf("expected null status, got %v", raw["status"])
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusNone {
		t.Errorf("expected StatusNone, got %v", got.Status)
	}
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":     "{",
		"no customer":  `{"timestamp":"2023-01-01T09:00:00Z","members":{}}`,
		"no timestamp": `{"customer":"c","members":{}}`,
		"bad status":   `{"customer":"c","timestamp":"2023-01-01T09:00:00Z","status":"DONE"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(`
types:
  - name: header
    columns: 3
  - name: lines
    columns: 5
`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Reference() != "header" {
		t.Errorf("reference: got %q", s.Reference())
	}
	if n, ok := s.Columns("lines"); !ok || n != 5 {
		t.Errorf("columns(lines): got %d, %v", n, ok)
	}
	if s.Recognized("type1") {
		t.Error("type1 should not be recognized by a custom schema")
	}
	if s.Extension != "csv" || s.Encoding != "UTF-8-SIG" || s.Enclosing != `"` {
		t.Errorf("defaults not applied: %+v", s)
	}

	bad := map[string]string{
		"no types":       `extension: csv`,
		"duplicate":      "types:\n  - {name: a, columns: 1}\n  - {name: a, columns: 2}\n",
		"zero columns":   "types:\n  - {name: a, columns: 0}\n",
		"delimiter name": "types:\n  - {name: a_b, columns: 1}\n",
	}
	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSchema([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()
	if s.Reference() != "type1" {
		t.Errorf("reference: got %q", s.Reference())
	}
	if n, _ := s.Columns("type7"); n != 23 {
		t.Errorf("type7 columns: got %d", n)
	}
	if s.Recognized("type6") {
		t.Error("type6 is not part of the default schema")
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}
