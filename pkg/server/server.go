// Package server exposes discovery and validation over HTTP.
package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/listing"
	"github.com/go-go-golems/batch-validator/pkg/runner"
	"github.com/go-go-golems/batch-validator/pkg/validate"
	"github.com/rs/zerolog/log"
)

// maxPayloadSize bounds a validation request body.
const maxPayloadSize = 1 << 20

type Server struct {
	runner *runner.Runner
}

func New(r *runner.Runner) *Server {
	return &Server{runner: r}
}

// BatchView is the JSON form of a batch.
type BatchView struct {
	Customer  string                `json:"customer"`
	Timestamp time.Time             `json:"timestamp"`
	Status    batch.Status          `json:"status"`
	Members   map[batch.Type]string `json:"members"`
	Complete  bool                  `json:"complete"`
	Ready     bool                  `json:"ready"`
	Missing   []batch.Type          `json:"missing,omitempty"`
	ClaimID   string                `json:"claim_id,omitempty"`
}

type ReportView struct {
	Customer  string             `json:"customer"`
	Timestamp time.Time          `json:"timestamp"`
	Status    batch.Status       `json:"status"`
	Findings  []validate.Finding `json:"findings"`
	Error     string             `json:"error,omitempty"`
}

type DiscoverResponse struct {
	Ready    []BatchView `json:"ready"`
	Claimed  []BatchView `json:"claimed"`
	Failures []string    `json:"failures"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	{
		api.POST("/discover", s.Discover)
		api.POST("/validate", s.Validate)
		api.GET("/batches", s.Batches)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("code", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) view(b *batch.Batch) BatchView {
	schema := s.runner.Scanner.Schema
	return BatchView{
		Customer:  b.Customer(),
		Timestamp: b.Timestamp(),
		Status:    b.Status,
		Members:   b.Members,
		Complete:  b.IsComplete(schema),
		Ready:     s.runner.Scanner.Ready(b),
		Missing:   b.Missing(schema),
		ClaimID:   b.ClaimID,
	}
}

func (s *Server) views(bs []*batch.Batch) []BatchView {
	out := make([]BatchView, 0, len(bs))
	for _, b := range bs {
		out = append(out, s.view(b))
	}
	return out
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// Discover runs one discovery pass. Query parameters: claim, dispatch
// (booleans) and customer (repeatable).
func (s *Server) Discover(c *gin.Context) {
	opts := runner.TriggerOptions{Customers: c.QueryArray("customer")}
	var err error
	if opts.Claim, err = queryBool(c, "claim"); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if opts.Dispatch, err = queryBool(c, "dispatch"); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.runner.Trigger(c.Request.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("Discovery failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, DiscoverResponse{
		Ready:    s.views(res.Ready),
		Claimed:  s.views(res.Claimed),
		Failures: errorStrings(res.Failures),
	})
}

// Validate validates the batch given as a dispatch payload in the body.
func (s *Server) Validate(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	b, err := batch.Decode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.runner.Engine.Validate(c.Request.Context(), b)
	view := ReportView{
		Customer:  report.Key.Customer,
		Timestamp: report.Key.Timestamp,
		Status:    report.Status,
		Findings:  report.Findings,
	}
	if view.Findings == nil {
		view.Findings = []validate.Finding{}
	}
	code := http.StatusOK
	if err != nil {
		view.Error = err.Error()
		code = http.StatusInternalServerError
	}
	c.JSON(code, view)
}

// Batches lists every grouped batch, complete or not.
func (s *Server) Batches(c *gin.Context) {
	res, err := s.runner.Scanner.Scan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	bs := listing.FilterCustomers(res.Batches, c.QueryArray("customer"))
	c.JSON(http.StatusOK, gin.H{
		"batches":  s.views(bs),
		"failures": errorStrings(res.Failures),
	})
}

func queryBool(c *gin.Context, name string) (bool, error) {
	v := c.Query(name)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
