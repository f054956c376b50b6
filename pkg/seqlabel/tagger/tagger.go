// Package tagger defines the boundary to the hosted entity-tagging model.
//
// A Tagger receives one record's raw text and returns the entity mentions the
// model found in it. Implementations live in the provider subpackages
// (openai, gemini, mock); everything above this interface is provider
// agnostic.
package tagger

import (
	"context"
	"errors"
)

// Label is one of the five entity types the pipeline emits.
type Label string

const (
	LabelPerson       Label = "PER"
	LabelOrganization Label = "ORG"
	LabelDate         Label = "DATE"
	LabelSkill        Label = "SKILL"
	LabelProfession   Label = "PROF"
)

// Labels lists all entity labels in a stable order.
var Labels = []Label{LabelPerson, LabelOrganization, LabelDate, LabelSkill, LabelProfession}

// Valid reports whether l is one of the known entity labels.
func (l Label) Valid() bool {
	switch l {
	case LabelPerson, LabelOrganization, LabelDate, LabelSkill, LabelProfession:
		return true
	}
	return false
}

// Mention is an entity snippet as reported by the model: the exact text as it
// appears in the record, plus its label. Character offsets reported by models
// are unreliable, so occurrences are located locally by the encoder.
type Mention struct {
	Label Label
	Text  string
}

// Tagger extracts entity mentions from one record's raw text. Implementations
// must be side-effect free beyond the outbound call and must honor ctx
// cancellation. Failures are classified with the sentinel errors below.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Mention, error)
}

// Sentinel errors classifying tagger failures. The batch driver retries
// ErrRateLimited, ErrTransient and ErrMalformedResponse with backoff;
// ErrContentFiltered is terminal for the record immediately.
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrTransient       = errors.New("transient network error")
	ErrContentFiltered = errors.New("content filtered")
	ErrMalformed       = errors.New("malformed response")
)

// Retryable reports whether the driver may retry the call that produced err.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrMalformed)
}
