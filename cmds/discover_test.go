package cmds

import (
	"strings"
	"testing"
	"time"
)

func TestOrphanedClaimWarning(t *testing.T) {
	cases := []struct {
		name       string
		settings   DiscoverSettings
		staleAfter time.Duration
		want       string
	}{
		{"list only", DiscoverSettings{}, 0, ""},
		{"dispatch", DiscoverSettings{Claim: true, Dispatch: true}, 0, ""},
		{"claim without recovery", DiscoverSettings{Claim: true}, 0, "stale-after is off"},
		{"claim with recovery", DiscoverSettings{Claim: true}, 2 * time.Hour, "until they are 2h0m0s old"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := orphanedClaimWarning(&c.settings, c.staleAfter)
			if c.want == "" {
				if got != "" {
					t.Errorf("unexpected warning %q", got)
				}
				return
			}
			if !strings.Contains(got, c.want) {
				t.Errorf("got %q, want it to contain %q", got, c.want)
			}
		})
	}
}
