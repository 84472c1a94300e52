// Package intent maps a free-text chat message to one of the five
// conversation intents.
package intent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
)

type Label string

const (
	Scheduling   Label = "scheduling"
	Cancellation Label = "cancellation"
	Lookup       Label = "lookup"
	Information  Label = "information"
	OutOfScope   Label = "out_of_scope"
)

func (l Label) Valid() bool {
	switch l {
	case Scheduling, Cancellation, Lookup, Information, OutOfScope:
		return true
	}
	return false
}

type Source string

const (
	SourceRules     Source = "rules"
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
	SourceDefault   Source = "default"
)

// ErrNoMatch is returned by a layer that has no opinion on the text.
var ErrNoMatch = errors.New("intent: no match")

// Classifier is one resolution layer. Failures, including "no opinion",
// come back as errors.
type Classifier interface {
	Classify(ctx context.Context, text string) (Label, error)
}

type Decision struct {
	Label  Label
	Source Source
}

type layer struct {
	source     Source
	classifier Classifier
}

// Composite tries rules, then the LLM, then heuristics, and finally
// defaults to Scheduling. It never fails.
type Composite struct {
	layers  []layer
	logger  *slog.Logger
	metrics *metrics.SchedulingMetrics
}

// NewComposite builds the standard chain. A nil remote classifier skips the
// LLM layer.
func NewComposite(remote Classifier, logger *slog.Logger, m *metrics.SchedulingMetrics) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	layers := []layer{{SourceRules, NewRuleClassifier()}}
	if remote != nil {
		layers = append(layers, layer{SourceLLM, remote})
	}
	layers = append(layers, layer{SourceHeuristic, NewHeuristicClassifier()})

	return &Composite{layers: layers, logger: logger, metrics: m}
}

func (c *Composite) Decide(ctx context.Context, text string) Decision {
	d := Decision{Label: Scheduling, Source: SourceDefault}

	for _, l := range c.layers {
		label, err := l.classifier.Classify(ctx, text)
		if err == nil && label.Valid() {
			d = Decision{Label: label, Source: l.source}
			break
		}
		if err != nil && !errors.Is(err, ErrNoMatch) {
			c.logger.Warn("intent layer failed", "source", l.source, "error", err)
		}
	}

	c.logger.Info("intent classified", "label", d.Label, "source", d.Source)
	c.metrics.ObserveIntent(string(d.Label), string(d.Source))
	return d
}

// Classify satisfies Classifier; the error is always nil.
func (c *Composite) Classify(ctx context.Context, text string) (Label, error) {
	return c.Decide(ctx, text).Label, nil
}
