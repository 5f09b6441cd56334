// Package evaluation wraps the LLM collaborators the competition engine
// depends on: the simulated patient a student converses with, and the
// transcript evaluator that grades a station against its checklist. Both are
// stateless interfaces taking all context as explicit parameters.
package evaluation

import (
	"context"

	"github.com/oscelab/osce-backend/internal/model"
)

// Evaluator grades one station transcript against the case checklist.
// A returned error leaves the station untouched so the caller can retry.
type Evaluator interface {
	Evaluate(ctx context.Context, c *model.Case, transcript []model.TranscriptTurn) (*model.EvaluationResult, error)
}

// PatientSimulator produces the simulated patient's next reply given the
// case's patient prompt and the conversation so far.
type PatientSimulator interface {
	Reply(ctx context.Context, c *model.Case, transcript []model.TranscriptTurn, message string) (string, error)
}
