// Package consistency implements the cross-source consistency checker
// (C4): given two providers' records for the same symbol, it computes a
// weighted confidence score and a directive for how the sync service
// should reconcile them.
package consistency

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sermady/stockdata-core/internal/config"
)

// Directive is the reconciliation instruction the checker hands back to
// the sync service (C6). The checker itself never mutates data.
type Directive string

const (
	UseEither      Directive = "use-either"
	UsePrimaryWarn Directive = "use-primary-warn"
	UsePrimaryOnly Directive = "use-primary-only"
	Investigate    Directive = "investigate"
)

// FieldValue is one comparable metric read from each of two sources.
type FieldValue struct {
	Field   string
	Primary float64
	Other   float64
}

// Result is the outcome of comparing a pair of records field by field.
type Result struct {
	Score       float64
	Directive   Directive
	FieldDeltas map[string]float64 // relative |a-b|/|a| per compared field
	Significant []string           // fields whose relative delta exceeded tolerance
}

// Checker compares same-symbol records from two sources using a
// configurable per-field tolerance/weight table.
type Checker struct {
	policy config.ConsistencyPolicy
}

func New(policy config.ConsistencyPolicy) *Checker {
	return &Checker{policy: policy}
}

// Compare scores a set of paired field values. Fields absent from the
// policy's weight table are ignored, and the weights of the fields actually
// compared are renormalized: score = Σ weight_i × x_i / Σ weight_i with
// x_i = max(0, 1 − delta_i/tolerance_i). This equals the plain weighted sum
// only when every field in the policy is compared.
func (c *Checker) Compare(fields []FieldValue) Result {
	values := make([]float64, 0, len(fields))
	weights := make([]float64, 0, len(fields))
	deltas := make(map[string]float64, len(fields))
	var significant []string

	for _, f := range fields {
		weight, hasWeight := c.policy.Weights[f.Field]
		tolerance, hasTolerance := c.policy.Tolerances[f.Field]
		if !hasWeight || !hasTolerance {
			continue
		}

		delta := relativeDelta(f.Primary, f.Other)
		deltas[f.Field] = delta
		if delta > tolerance {
			significant = append(significant, f.Field)
		}

		contribution := math.Max(0, 1-delta/tolerance)
		values = append(values, contribution)
		weights = append(weights, weight)
	}

	var score float64
	if len(values) > 0 {
		// stat.Mean computes Σ(value_i·weight_i)/Σweight_i over the compared
		// fields only, so a partial comparison is scored on its own weights.
		score = stat.Mean(values, weights)
	}

	return Result{
		Score:       score,
		Directive:   directiveFor(score),
		FieldDeltas: deltas,
		Significant: significant,
	}
}

func relativeDelta(a, b float64) float64 {
	if a == 0 {
		if b == 0 {
			return 0
		}
		return math.Abs(b)
	}
	return math.Abs(a-b) / math.Abs(a)
}

func directiveFor(score float64) Directive {
	switch {
	case score > 0.8:
		return UseEither
	case score > 0.6:
		return UsePrimaryWarn
	case score > 0.3:
		return UsePrimaryOnly
	default:
		return Investigate
	}
}
