package eventstore

import (
	"context"
	"time"
)

// Metadata is the provenance record the store attaches to every StoredEvent.
// Source, CreatedAt and GameID are assigned by the store itself during
// Append; CorrelationID, CausationID and UserID are optional, caller-supplied
// provenance.
type Metadata struct {
	Source        string
	CreatedAt     time.Time
	CorrelationID string
	CausationID   string
	UserID        string
	GameID        string
}

// Provenance is the caller-side subset of Metadata, obtained at Append time
// from the store's ProvenanceExtractor; the store fills in Source, CreatedAt
// and GameID itself.
type Provenance struct {
	CorrelationID string
	CausationID   string
	UserID        string
}

// merge overlays p onto base, with p's non-empty fields taking precedence.
// base is not mutated.
func (p Provenance) merge(base Provenance) Provenance {
	out := base
	if p.CorrelationID != "" {
		out.CorrelationID = p.CorrelationID
	}
	if p.CausationID != "" {
		out.CausationID = p.CausationID
	}
	if p.UserID != "" {
		out.UserID = p.UserID
	}
	return out
}

// ProvenanceExtractor builds a Provenance value from a context. Applications
// supply their own extractor that knows about private context keys
// (tenant/user/correlation/trace ids). Append takes no explicit Provenance
// argument, so the extracted value is the only source of these fields.
type ProvenanceExtractor func(ctx context.Context) Provenance
