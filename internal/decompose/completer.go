package decompose

import "context"

// TextCompleter is the external capability decompose_story invokes to turn
// a user story into a structured task breakdown. Injected so tests can
// substitute a deterministic fake (spec.md §9).
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
