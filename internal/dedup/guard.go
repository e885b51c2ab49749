// Package dedup decides whether a normalized lead may be admitted to the store.
package dedup

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/normalize"
	"github.com/sells-group/leadflow/internal/store"
)

// Decision is the guard's verdict for one lead.
type Decision int

const (
	Accept Decision = iota
	Duplicate
	Invalid
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Duplicate:
		return "duplicate"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Finder is the slice of the store the guard reads from.
type Finder interface {
	FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	FindLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
}

// Option configures a Guard.
type Option func(*Guard)

// WithFirmCheck also rejects a lead when one already exists with the same
// company name and source. Scraper imports are firm-level and use it.
func WithFirmCheck() Option {
	return func(g *Guard) { g.firmCheck = true }
}

// Guard is reject-on-collision admission control. It never merges.
type Guard struct {
	finder    Finder
	firmCheck bool
}

// New creates a Guard reading from f.
func New(f Finder, opts ...Option) *Guard {
	g := &Guard{finder: f}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check classifies lead. An accepted lead without a valid email has its
// email cleared in place. On Duplicate the existing lead is returned.
func (g *Guard) Check(ctx context.Context, lead *model.Lead) (Decision, *model.Lead, error) {
	if normalize.ValidEmail(lead.Email) {
		existing, err := g.finder.FindLeadByEmail(ctx, lead.Email)
		if err != nil {
			return Invalid, nil, eris.Wrap(err, "dedup: find by email")
		}
		if existing != nil {
			return Duplicate, existing, nil
		}
	} else {
		if lead.FirstName == "" || lead.CompanyName == "" {
			return Invalid, nil, nil
		}
		lead.Email = ""
	}

	if g.firmCheck && lead.CompanyName != "" {
		same, err := g.finder.FindLeads(ctx, store.LeadFilter{
			CompanyName: lead.CompanyName,
			Source:      lead.Source,
			Limit:       1,
		})
		if err != nil {
			return Invalid, nil, eris.Wrap(err, "dedup: find by firm")
		}
		if len(same) > 0 {
			return Duplicate, &same[0], nil
		}
	}
	return Accept, nil, nil
}
