// Package salary resolves a posting's compensation range, first by matching
// explicit ranges in the text and then by asking the model for an estimate.
package salary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/auros/internal/model"
)

// PatternConfidence is the confidence attached to a range found in the text.
const PatternConfidence = 0.9

// Pattern is a declarative salary pattern. Expr must have two capture groups
// (low, high); each captured number has commas stripped and is multiplied by
// Multiplier.
type Pattern struct {
	Expr       string
	Multiplier int
}

// Input is what the resolver needs to know about a posting.
type Input struct {
	Title   string
	Company string
	Text    string
}

// Estimate is the estimation stage's raw answer.
type Estimate struct {
	Min        *int
	Max        *int
	Confidence float64
}

// Estimator produces a salary estimate, typically backed by an LLM.
type Estimator interface {
	EstimateSalary(ctx context.Context, in Input) (Estimate, error)
}

// Result is a tagged salary resolution. When Found is false every other field
// is zero.
type Result struct {
	Found      bool
	Min        int
	Max        int
	Source     string // model.SourceFromText or model.SourceEstimated
	Confidence float64
}

type compiled struct {
	re         *regexp.Regexp
	multiplier int
}

// Resolver runs the pattern stage and then the estimation stage.
type Resolver struct {
	patterns      []compiled
	estimator     Estimator
	minConfidence float64
	logger        *slog.Logger
}

// NewResolver compiles patterns. estimator may be nil, in which case only the
// pattern stage runs. Estimates below minConfidence are discarded.
func NewResolver(patterns []Pattern, estimator Estimator, minConfidence float64, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		estimator:     estimator,
		minConfidence: minConfidence,
		logger:        logger,
	}
	for i, p := range patterns {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("compiling salary pattern %d: %w", i, err)
		}
		if re.NumSubexp() < 2 {
			return nil, fmt.Errorf("salary pattern %d: need 2 capture groups, got %d", i, re.NumSubexp())
		}
		m := p.Multiplier
		if m <= 0 {
			m = 1
		}
		r.patterns = append(r.patterns, compiled{re: re, multiplier: m})
	}
	return r, nil
}

// Resolve returns the salary for a posting. The estimator is consulted only
// when no pattern matches. Either stage's result must clear the confidence
// threshold. A returned error means the estimation transport
// failed; the result is then NotFound and the caller may continue without a
// salary.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Result, error) {
	if res, ok := r.fromText(in.Text); ok {
		if !r.confident(res.Confidence) {
			return Result{}, nil
		}
		return res, nil
	}
	if r.estimator == nil {
		return Result{}, nil
	}

	est, err := r.estimator.EstimateSalary(ctx, in)
	if errors.Is(err, model.ErrExtractionFailed) {
		r.logger.Warn("llm_salary_parse_failed", "title", in.Title, "company", in.Company)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("estimating salary: %w", err)
	}
	return r.gate(est), nil
}

func (r *Resolver) fromText(text string) (Result, bool) {
	for _, p := range r.patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		lo, okLo := parseAmount(m[1], p.multiplier)
		hi, okHi := parseAmount(m[2], p.multiplier)
		if !okLo || !okHi {
			continue
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return Result{
			Found:      true,
			Min:        lo,
			Max:        hi,
			Source:     model.SourceFromText,
			Confidence: PatternConfidence,
		}, true
	}
	return Result{}, false
}

func (r *Resolver) gate(est Estimate) Result {
	if est.Min == nil || est.Max == nil || *est.Min <= 0 || *est.Max <= 0 {
		return Result{}
	}
	if !r.confident(est.Confidence) {
		return Result{}
	}
	lo, hi := *est.Min, *est.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	return Result{
		Found:      true,
		Min:        lo,
		Max:        hi,
		Source:     model.SourceEstimated,
		Confidence: est.Confidence,
	}
}

// confident applies the gate shared by both stages: a result below the
// threshold is dropped rather than stored.
func (r *Resolver) confident(confidence float64) bool {
	if confidence < r.minConfidence {
		r.logger.Debug("salary below confidence threshold",
			"confidence", confidence,
			"threshold", r.minConfidence,
		)
		return false
	}
	return true
}

// parseAmount turns "150,000" or "150" into an annual figure. Plain figures
// under 1000 are rejected since they are hourly rates or noise.
func parseAmount(s string, multiplier int) (int, bool) {
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || v <= 0 {
		return 0, false
	}
	v *= multiplier
	if v < 1000 {
		return 0, false
	}
	return v, true
}
