// Package extract turns raw posting text into structured attributes with an LLM.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/amishk599/auros/internal/llm"
	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/retry"
	"github.com/amishk599/auros/internal/salary"
)

// maxPromptText caps how much posting text goes into a prompt.
const maxPromptText = 12000

// Primary functions the model may assign.
var primaryFunctions = []string{"TPM", "PM", "Platform", "SRE", "AI/ML", "Other"}

// Attributes are the structured fields extracted from a posting.
type Attributes struct {
	PrimaryFunction string
	YOEMin          *int
	YOEMax          *int
	WorkMode        model.WorkMode
	Location        string
	KeyRequirements []string
}

// Service runs extraction and salary estimation prompts.
type Service struct {
	provider llm.Provider
	policy   retry.Policy
	timeout  time.Duration
	logger   *slog.Logger

	extraction *template.Template
	salary     *template.Template
}

var _ salary.Estimator = (*Service)(nil)

// NewService creates a Service. policy governs transport retries; timeout
// bounds each model call.
func NewService(provider llm.Provider, policy retry.Policy, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		provider:   provider,
		policy:     policy,
		timeout:    timeout,
		logger:     logger,
		extraction: llm.ExtractionTemplate,
		salary:     llm.SalaryTemplate,
	}
}

type rawAttributes struct {
	PrimaryFunction string   `json:"primary_function"`
	YOE             *rawYOE  `json:"yoe_required"`
	WorkMode        string   `json:"work_mode"`
	Location        string   `json:"location"`
	KeyRequirements []string `json:"key_requirements"`
}

type rawYOE struct {
	Min flexNumber `json:"min"`
	Max flexNumber `json:"max"`
}

// Extract returns the structured attributes of a posting. A transport
// failure that survives the retry policy is returned as is. Unusable model
// output is re-requested once and then reported as model.ErrExtractionFailed.
func (s *Service) Extract(ctx context.Context, text string) (Attributes, error) {
	prompt, err := render(s.extraction, struct{ Text string }{Text: clip(text)})
	if err != nil {
		return Attributes{}, err
	}

	var raw rawAttributes
	if err := s.completeObject(ctx, "extract", prompt, &raw); err != nil {
		return Attributes{}, err
	}
	return normalize(raw), nil
}

type rawEstimate struct {
	Min        flexNumber `json:"salary_min"`
	Max        flexNumber `json:"salary_max"`
	Confidence flexNumber `json:"confidence"`
}

// EstimateSalary asks the model for a salary range.
func (s *Service) EstimateSalary(ctx context.Context, in salary.Input) (salary.Estimate, error) {
	prompt, err := render(s.salary, salary.Input{Title: in.Title, Company: in.Company, Text: clip(in.Text)})
	if err != nil {
		return salary.Estimate{}, err
	}

	var raw rawEstimate
	if err := s.completeObject(ctx, "estimate_salary", prompt, &raw); err != nil {
		return salary.Estimate{}, err
	}

	est := salary.Estimate{Min: raw.Min.intPtr(), Max: raw.Max.intPtr()}
	if raw.Confidence.set {
		est.Confidence = math.Max(0, math.Min(1, raw.Confidence.value))
	}
	return est, nil
}

// completeObject calls the model under the retry policy and decodes the first
// recoverable JSON object into v. Only transport failures are retried; an
// unusable answer is reported once as model.ErrExtractionFailed.
func (s *Service) completeObject(ctx context.Context, op, prompt string, v any) error {
	out, err := retry.Do(ctx, s.policy, s.logger, op, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.provider.Complete(callCtx, prompt)
	})
	if err != nil {
		return fmt.Errorf("llm %s: %w", op, err)
	}
	if err := llm.ParseObject(out, v); err != nil {
		s.logger.Warn("llm output not parseable", "op", op, "output", clipN(out, 200))
		return fmt.Errorf("%w: %s returned no usable object", model.ErrExtractionFailed, op)
	}
	return nil
}

func normalize(raw rawAttributes) Attributes {
	a := Attributes{
		PrimaryFunction: normalizeFunction(raw.PrimaryFunction),
		WorkMode:        model.ParseWorkMode(raw.WorkMode),
		Location:        strings.TrimSpace(raw.Location),
	}
	if a.Location == "" {
		a.Location = "Unknown"
	}
	if raw.YOE != nil {
		a.YOEMin = raw.YOE.Min.intPtr()
		a.YOEMax = raw.YOE.Max.intPtr()
		if a.YOEMin != nil && a.YOEMax != nil && *a.YOEMin > *a.YOEMax {
			a.YOEMin, a.YOEMax = a.YOEMax, a.YOEMin
		}
	}
	for _, r := range raw.KeyRequirements {
		if r = strings.TrimSpace(r); r != "" {
			a.KeyRequirements = append(a.KeyRequirements, r)
		}
		if len(a.KeyRequirements) == 5 {
			break
		}
	}
	return a
}

func normalizeFunction(s string) string {
	s = strings.TrimSpace(s)
	for _, f := range primaryFunctions {
		if strings.EqualFold(s, f) {
			return f
		}
	}
	return "Other"
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func clip(s string) string {
	return clipN(s, maxPromptText)
}

func clipN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// flexNumber accepts a JSON number, a numeric string such as "8" or "8+",
// or null. Models are loose about types.
type flexNumber struct {
	value float64
	set   bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	*f = flexNumber{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		f.value, f.set = t, true
	case string:
		t = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(t), "+"))
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			f.value, f.set = n, true
		}
	}
	return nil
}

// intPtr returns nil for an unset or negative value.
func (f flexNumber) intPtr() *int {
	if !f.set || f.value < 0 {
		return nil
	}
	n := int(math.Round(f.value))
	return &n
}
