// Package scoring computes the match score of a posting against the user's
// preferences. Scoring is pure: the same input always yields the same score.
package scoring

import (
	"math"

	"github.com/amishk599/auros/internal/keyword"
	"github.com/amishk599/auros/internal/model"
)

// Factor weights. They sum to 1.
const (
	WeightTitle    = 0.30
	WeightDomain   = 0.25
	WeightYOE      = 0.20
	WeightTier     = 0.15
	WeightWorkMode = 0.10
)

// PreferAny disables the work-mode preference.
const PreferAny = "any"

// Options configures an Engine.
type Options struct {
	TitleTerms  []string
	DomainTerms []string
	// Saturation is the number of distinct domain terms that earns full
	// domain credit. Defaults to 5.
	Saturation int
	// Target experience band, inclusive. Defaults to 8-15.
	TargetYOEMin int
	TargetYOEMax int
}

// Input is the subset of a posting the engine looks at.
type Input struct {
	Title    string
	Text     string
	YOEMin   *int
	YOEMax   *int
	WorkMode model.WorkMode
}

// Breakdown exposes the individual factors for display and debugging.
type Breakdown struct {
	Title    float64
	Domain   float64
	YOE      float64
	Tier     float64
	WorkMode float64
	Total    float64
}

// Engine scores postings.
type Engine struct {
	title      *keyword.Matcher
	domain     *keyword.Matcher
	saturation int
	yoeLow     int
	yoeHigh    int
}

// New builds an Engine, applying defaults for zero-valued options.
func New(opts Options) *Engine {
	e := &Engine{
		title:      keyword.New(opts.TitleTerms),
		domain:     keyword.New(opts.DomainTerms),
		saturation: opts.Saturation,
		yoeLow:     opts.TargetYOEMin,
		yoeHigh:    opts.TargetYOEMax,
	}
	if e.saturation <= 0 {
		e.saturation = 5
	}
	if e.yoeLow == 0 && e.yoeHigh == 0 {
		e.yoeLow, e.yoeHigh = 8, 15
	}
	if e.yoeLow > e.yoeHigh {
		e.yoeLow, e.yoeHigh = e.yoeHigh, e.yoeLow
	}
	return e
}

// Score returns the weighted match score in [0, 1], rounded to 4 decimals.
func (e *Engine) Score(in Input, tier int, preferredMode string) float64 {
	return e.Breakdown(in, tier, preferredMode).Total
}

// Breakdown returns every factor along with the weighted total.
func (e *Engine) Breakdown(in Input, tier int, preferredMode string) Breakdown {
	b := Breakdown{
		Title:    e.titleFactor(in.Title),
		Domain:   e.domainFactor(in.Text),
		YOE:      yoeFactor(in.YOEMin, in.YOEMax, e.yoeLow, e.yoeHigh),
		Tier:     tierFactor(tier),
		WorkMode: workModeFactor(in.WorkMode, preferredMode),
	}
	total := WeightTitle*b.Title +
		WeightDomain*b.Domain +
		WeightYOE*b.YOE +
		WeightTier*b.Tier +
		WeightWorkMode*b.WorkMode
	b.Total = round4(clamp01(total))
	return b
}

func (e *Engine) titleFactor(title string) float64 {
	if e.title.Any(title) {
		return 1
	}
	return 0
}

func (e *Engine) domainFactor(text string) float64 {
	return math.Min(1, float64(e.domain.Count(text))/float64(e.saturation))
}

// yoeFactor measures how much of the posting's experience range falls inside
// the target band. A missing bound defaults to the matching target bound; a
// fully missing range scores 0.5.
func yoeFactor(min, max *int, low, high int) float64 {
	if min == nil && max == nil {
		return 0.5
	}
	lo, hi := low, high
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		if lo >= low && lo <= high {
			return 1
		}
		return 0
	}
	overlap := float64(intMin(hi, high) - intMax(lo, low))
	if overlap <= 0 {
		return 0
	}
	return math.Min(1, overlap/float64(hi-lo))
}

func tierFactor(tier int) float64 {
	switch tier {
	case 1:
		return 1.0
	case 2:
		return 0.8
	default:
		return 0.6
	}
}

func workModeFactor(mode model.WorkMode, preferred string) float64 {
	if preferred == "" || preferred == PreferAny {
		return 1
	}
	if mode == "" || mode == model.WorkModeUnclear {
		return 0.5
	}
	if string(mode) == preferred {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func intMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func intMax(a, b int) int {
	if a > b {
		return a
	}
	return b
}
