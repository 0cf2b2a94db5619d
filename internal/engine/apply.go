package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbaille/decktags/internal/domain"
)

// Sink commits tag mutations to the host collection. It receives the whole
// ordered batch in one call and reports which notes were written.
type Sink interface {
	ApplyTags(ctx context.Context, mutations []domain.TagMutation) (domain.ApplyResult, error)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, mutations []domain.TagMutation) (domain.ApplyResult, error)

// ApplyTags calls f
func (f SinkFunc) ApplyTags(ctx context.Context, mutations []domain.TagMutation) (domain.ApplyResult, error) {
	return f(ctx, mutations)
}

// ApplyError reports a batch that was not fully committed.
// Retrying only Failed is safe: mutations only add tags.
type ApplyError struct {
	Succeeded []domain.NoteID
	Failed    []domain.NoteID
	Reasons   map[domain.NoteID]string
	Cause     error
}

func (e *ApplyError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "apply tags: %d of %d notes failed", len(e.Failed), len(e.Failed)+len(e.Succeeded))
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *ApplyError) Unwrap() error { return e.Cause }

// Report summarizes a committed batch
type Report struct {
	RunID   string          `json:"run_id"`
	Applied []domain.NoteID `json:"applied"`
	Tags    int             `json:"tags"`
}

// Apply commits mutations through sink in a single call. Cancellation is
// honored only before the sink is called.
func (e *Engine) Apply(ctx context.Context, mutations []domain.TagMutation, sink Sink) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(mutations) == 0 {
		return &Report{RunID: e.runID}, nil
	}

	e.enter(PhaseApplying, Event{Mutations: len(mutations)})

	result, err := sink.ApplyTags(ctx, mutations)

	// A note the sink neither applied nor failed counts as failed
	aerr := newApplyError(mutations, result, err)
	if err != nil || len(aerr.Failed) > 0 {
		e.enter(PhaseFailed, Event{Mutations: len(aerr.Succeeded), Err: aerr})
		return nil, aerr
	}

	report := &Report{RunID: e.runID, Applied: result.Applied}
	applied := make(map[domain.NoteID]bool, len(result.Applied))
	for _, id := range result.Applied {
		applied[id] = true
	}
	for _, m := range mutations {
		if applied[m.NoteID] {
			report.Tags += len(m.Add)
		}
	}

	e.enter(PhaseDone, Event{Notes: len(result.Applied), Mutations: len(mutations)})
	return report, nil
}

// newApplyError classifies every note of the batch. A note the sink did not
// mention as applied counts as failed.
func newApplyError(mutations []domain.TagMutation, result domain.ApplyResult, cause error) *ApplyError {
	applied := make(map[domain.NoteID]bool, len(result.Applied))
	for _, id := range result.Applied {
		applied[id] = true
	}

	aerr := &ApplyError{Reasons: make(map[domain.NoteID]string), Cause: cause}
	for _, m := range mutations {
		reason, failed := result.Failed[m.NoteID]
		if applied[m.NoteID] && !failed {
			aerr.Succeeded = append(aerr.Succeeded, m.NoteID)
			continue
		}
		aerr.Failed = append(aerr.Failed, m.NoteID)
		if reason == "" && cause != nil {
			reason = cause.Error()
		}
		if reason == "" {
			reason = "not reported as applied"
		}
		aerr.Reasons[m.NoteID] = reason
	}
	return aerr
}

// Retry returns the mutations of a batch that belong to failed notes
func Retry(mutations []domain.TagMutation, aerr *ApplyError) []domain.TagMutation {
	failed := make(map[domain.NoteID]bool, len(aerr.Failed))
	for _, id := range aerr.Failed {
		failed[id] = true
	}

	var out []domain.TagMutation
	for _, m := range mutations {
		if failed[m.NoteID] {
			out = append(out, m)
		}
	}
	return out
}
