package listing

import "github.com/go-go-golems/batch-validator/pkg/batch"

// FilterCustomers keeps the batches of the given customers. Blank names are
// ignored, and bs is returned as is when no name is left.
func FilterCustomers(bs []*batch.Batch, customers []string) []*batch.Batch {
	keep := make(map[string]bool, len(customers))
	for _, c := range customers {
		if c != "" {
			keep[c] = true
		}
	}
	if len(keep) == 0 {
		return bs
	}
	out := make([]*batch.Batch, 0, len(bs))
	for _, b := range bs {
		if keep[b.Customer()] {
			out = append(out, b)
		}
	}
	return out
}
