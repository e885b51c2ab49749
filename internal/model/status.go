package model

import "github.com/rotisserie/eris"

// LeadStatus is the pipeline state of a lead.
type LeadStatus string

const (
	StatusIngested         LeadStatus = "ingested"
	StatusEnriching        LeadStatus = "enriching"
	StatusEnriched         LeadStatus = "enriched"
	StatusScored           LeadStatus = "scored"
	StatusEmailed          LeadStatus = "emailed"
	StatusReplied          LeadStatus = "replied"
	StatusBooked           LeadStatus = "booked"
	StatusEnrichmentFailed LeadStatus = "enrichment_failed"
	StatusDead             LeadStatus = "dead"
)

// ErrIllegalTransition is returned by Transition for a move the state
// machine does not allow.
var ErrIllegalTransition = eris.New("illegal lead status transition")

// rank orders the active states. Absorbing states are absent.
var rank = map[LeadStatus]int{
	StatusIngested:  0,
	StatusEnriching: 1,
	StatusEnriched:  2,
	StatusScored:    3,
	StatusEmailed:   4,
	StatusReplied:   5,
	StatusBooked:    6,
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	_, active := rank[s]
	return active || s.Terminal()
}

// Terminal reports whether s is one of the absorbing failure states.
func (s LeadStatus) Terminal() bool {
	return s == StatusDead || s == StatusEnrichmentFailed
}

// Transition validates a status change. Active states only move forward
// (re-setting the current state is allowed so repeated deliveries are
// harmless). dead and enrichment_failed are reachable from any active
// state. enrichment_failed may be requeued to ingested or killed; dead is
// final.
func Transition(from, to LeadStatus) error {
	if !from.Valid() || !to.Valid() {
		return eris.Wrapf(ErrIllegalTransition, "unknown status %q -> %q", from, to)
	}
	if from == to {
		return nil
	}

	switch from {
	case StatusDead:
		return eris.Wrapf(ErrIllegalTransition, "%s -> %s", from, to)
	case StatusEnrichmentFailed:
		if to == StatusIngested || to == StatusDead {
			return nil
		}
		return eris.Wrapf(ErrIllegalTransition, "%s -> %s", from, to)
	}

	if to.Terminal() {
		return nil
	}
	if rank[to] < rank[from] {
		return eris.Wrapf(ErrIllegalTransition, "%s -> %s", from, to)
	}
	return nil
}
