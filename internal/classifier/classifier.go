// Package classifier defines the moderation verdict model and the clients
// that obtain verdicts from the external classification model.
package classifier

import (
	"context"
	"fmt"
)

// Decision is a classifier outcome. Decisions form a small severity
// lattice: ALLOW < REVIEW < BLOCK. Combining verdicts takes the maximum,
// which keeps the combination rule testable without any I/O.
type Decision string

const (
	DecisionAllow  Decision = "ALLOW"
	DecisionReview Decision = "REVIEW"
	DecisionBlock  Decision = "BLOCK"
)

var decisionRank = map[Decision]int{
	DecisionAllow:  0,
	DecisionReview: 1,
	DecisionBlock:  2,
}

// ParseDecision validates a decision value from an external response.
// Anything unrecognized is an error, never a default: a classifier that
// answers garbage must not approve content.
func ParseDecision(s string) (Decision, error) {
	d := Decision(s)
	if _, ok := decisionRank[d]; !ok {
		return "", fmt.Errorf("unrecognized decision %q", s)
	}
	return d, nil
}

// Combine folds decisions by maximum severity. Called with the verdicts
// that exist for a post (text always, image when a photo is present).
// An empty input combines to REVIEW: no evidence is never approval.
func Combine(decisions ...Decision) Decision {
	if len(decisions) == 0 {
		return DecisionReview
	}
	out := decisions[0]
	for _, d := range decisions[1:] {
		if decisionRank[d] > decisionRank[out] {
			out = d
		}
	}
	return out
}

// Verdict is one classifier sub-verdict
type Verdict struct {
	Decision   Decision
	Score      float64
	Categories map[string]float64
	// Message is a short user-facing rejection message, present only for
	// BLOCK decisions.
	Message      string
	ModelVersion string
}

// TextClassifier evaluates post text
type TextClassifier interface {
	ClassifyText(ctx context.Context, title, body string) (*Verdict, error)
}

// ImageClassifier evaluates raw image bytes
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, data []byte, mimeType string) (*Verdict, error)
}
