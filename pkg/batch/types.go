package batch

import (
	"fmt"
	"sort"
	"time"
)

// Type is a file type tag such as "type1". The set of recognized tags is
// defined by a Schema.
type Type string

// Key identifies a batch: one customer at one minute.
type Key struct {
	Customer  string
	Timestamp time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s > %s", k.Customer, k.Timestamp.UTC().Format(time.RFC3339))
}

// Batch is a group of files contributed by one customer at one point in time.
//
// Customer and timestamp are fixed at construction. Members maps each type tag
// to the storage path of the file carrying it. Status is the last status read
// from (or written to) the reference member's metadata.
type Batch struct {
	customer  string
	timestamp time.Time

	Members map[Type]string
	Status  Status

	// ClaimID and ClaimedAt are set by the claim step and travel with the
	// dispatch payload.
	ClaimID   string
	ClaimedAt time.Time
}

// New creates an empty batch. The timestamp is truncated to the minute and
// converted to UTC.
func New(customer string, timestamp time.Time) *Batch {
	return &Batch{
		customer:  customer,
		timestamp: timestamp.UTC().Truncate(time.Minute),
		Members:   map[Type]string{},
	}
}

func (b *Batch) Customer() string     { return b.customer }
func (b *Batch) Timestamp() time.Time { return b.timestamp }

func (b *Batch) Key() Key {
	return Key{Customer: b.customer, Timestamp: b.timestamp}
}

// IsComplete reports whether the batch has a member for every type of the schema.
func (b *Batch) IsComplete(s *Schema) bool {
	return len(b.Missing(s)) == 0
}

// Missing returns the schema types without a member, in schema order.
func (b *Batch) Missing(s *Schema) []Type {
	var missing []Type
	for _, t := range s.Types() {
		if p, ok := b.Members[t]; !ok || p == "" {
			missing = append(missing, t)
		}
	}
	return missing
}

// Reference returns the path of the member hosting the batch status.
func (b *Batch) Reference(s *Schema) (string, bool) {
	p, ok := b.Members[s.Reference()]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// Paths returns member paths sorted by path.
func (b *Batch) Paths() []string {
	paths := make([]string, 0, len(b.Members))
	for _, p := range b.Members {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
