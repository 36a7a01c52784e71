package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// payload is the wire form of a Batch handed from discovery to validation.
type payload struct {
	Customer  string          `json:"customer"`
	Timestamp time.Time       `json:"timestamp"`
	Members   map[Type]string `json:"members"`
	Status    Status          `json:"status"`
	ClaimID   string          `json:"claim_id,omitempty"`
	ClaimedAt *time.Time      `json:"claimed_at,omitempty"`
}

func (b *Batch) MarshalJSON() ([]byte, error) {
	p := payload{
		Customer:  b.customer,
		Timestamp: b.timestamp,
		Members:   b.Members,
		Status:    b.Status,
		ClaimID:   b.ClaimID,
	}
	if !b.ClaimedAt.IsZero() {
		t := b.ClaimedAt.UTC()
		p.ClaimedAt = &t
	}
	return json.Marshal(p)
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Customer == "" {
		return errors.New("batch payload has no customer")
	}
	if p.Timestamp.IsZero() {
		return errors.New("batch payload has no timestamp")
	}
	nb := New(p.Customer, p.Timestamp)
	for t, path := range p.Members {
		nb.Members[t] = path
	}
	nb.Status = p.Status
	nb.ClaimID = p.ClaimID
	if p.ClaimedAt != nil {
		nb.ClaimedAt = p.ClaimedAt.UTC()
	}
	*b = *nb
	return nil
}

// Decode parses a dispatch payload.
func Decode(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch payload: %w", err)
	}
	return &b, nil
}
