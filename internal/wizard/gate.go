package wizard

import (
	"context"

	"github.com/medannot/medannot/internal/draft"
)

// Gate decides whether to offer restoring a previous draft, at most once per
// session.
type Gate struct {
	drafts *draft.Store
}

// NewGate returns a Gate over drafts.
func NewGate(drafts *draft.Store) *Gate {
	return &Gate{drafts: drafts}
}

// ShouldPrompt reports whether the restore dialog should be shown: the
// session has not resolved it yet and a meaningful draft exists. Storage
// problems read as "no".
func (g *Gate) ShouldPrompt(ctx context.Context) bool {
	if g.drafts.SessionResolved(ctx) {
		return false
	}

	return g.drafts.HasMeaningfulDraft(ctx)
}

// Preview returns the stored draft the dialog is about, if any.
func (g *Gate) Preview(ctx context.Context) (draft.Record, bool) {
	return g.drafts.Load(ctx)
}

// Restore loads the stored draft into w at its recorded step. If the draft
// has disappeared meanwhile, w starts fresh. The session is marked resolved
// either way.
func (g *Gate) Restore(ctx context.Context, w *Wizard) error {
	defer g.drafts.MarkSessionResolved(ctx)

	rec, ok := g.drafts.Load(ctx)
	if !ok {
		return w.Reset()
	}

	return w.Load(rec)
}

// Discard deletes the stored draft and starts w over on the patient step.
func (g *Gate) Discard(ctx context.Context, w *Wizard) error {
	g.drafts.Clear(ctx)
	g.drafts.MarkSessionResolved(ctx)

	return w.Reset()
}

// Dismiss closes the dialog without a choice. The draft is left in place but
// will not be offered again this session.
func (g *Gate) Dismiss(ctx context.Context) {
	g.drafts.MarkSessionResolved(ctx)
}
