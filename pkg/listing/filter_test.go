package listing

import (
	"testing"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
)

func TestFilterCustomers(t *testing.T) {
	ts := time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)
	bs := []*batch.Batch{batch.New("a", ts), batch.New("b", ts), batch.New("c", ts)}

	t.Run("blank names keep everything", func(t *testing.T) {
		if got := FilterCustomers(bs, []string{"", ""}); len(got) != 3 {
			t.Errorf("got %d batches", len(got))
		}
	})
	t.Run("keeps named customers in order", func(t *testing.T) {
		got := FilterCustomers(bs, []string{"c", "a", "z"})
		if len(got) != 2 || got[0].Customer() != "a" || got[1].Customer() != "c" {
			t.Errorf("got %v", got)
		}
	})
	t.Run("unknown customer yields nothing", func(t *testing.T) {
		if got := FilterCustomers(bs, []string{"z"}); len(got) != 0 {
			t.Errorf("got %v", got)
		}
	})
}
