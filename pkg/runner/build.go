package runner

import (
	"github.com/go-go-golems/batch-validator/pkg/config"
	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/listing"
	"github.com/go-go-golems/batch-validator/pkg/relocate"
	"github.com/go-go-golems/batch-validator/pkg/status"
	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/go-go-golems/batch-validator/pkg/validate"
)

// New wires a runner for cfg on top of s. d may be nil when nothing is
// dispatched.
func New(cfg *config.Config, s store.Store, d dispatch.Dispatcher) *Runner {
	v := cfg.Validation
	mover := relocate.NewMover(s, v.PollInterval, v.MaxPolls)
	ctrl := status.NewController(s, v.Schema, mover, v.StaleAfter)
	return &Runner{
		Scanner:    listing.NewScanner(s, v.Schema, ctrl, cfg.Storage.RootPath),
		Status:     ctrl,
		Engine:     validate.NewEngine(s, v.Schema, ctrl, v.RequiredEncoding),
		Dispatcher: d,
	}
}
