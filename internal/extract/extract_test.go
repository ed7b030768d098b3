package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/retry"
	"github.com/amishk599/auros/internal/salary"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns one scripted reply per call and records prompts.
type scriptedProvider struct {
	replies []reply
	prompts []string
}

type reply struct {
	out string
	err error
}

func (p *scriptedProvider) Complete(_ context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.out, r.err
}

func newService(p *scriptedProvider) *Service {
	policy := retry.Policy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
	return NewService(p, policy, time.Second, discardLogger())
}

func TestExtract_Success(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{
		"primary_function": "tpm",
		"yoe_required": {"min": 8, "max": "12+"},
		"work_mode": "Remote",
		"location": "  Seattle, WA ",
		"key_requirements": ["Kubernetes", " ", "Program leadership"]
	}`}}}

	got, err := newService(p).Extract(context.Background(), "Senior TPM posting text")
	require.NoError(t, err)

	assert.Equal(t, "TPM", got.PrimaryFunction)
	require.NotNil(t, got.YOEMin)
	require.NotNil(t, got.YOEMax)
	assert.Equal(t, 8, *got.YOEMin)
	assert.Equal(t, 12, *got.YOEMax)
	assert.Equal(t, model.WorkModeRemote, got.WorkMode)
	assert.Equal(t, "Seattle, WA", got.Location)
	assert.Equal(t, []string{"Kubernetes", "Program leadership"}, got.KeyRequirements)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "Senior TPM posting text")
}

func TestExtract_DefaultsForMissingFields(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `Here you go: {"primary_function":"Chef","yoe_required":null}`}}}

	got, err := newService(p).Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Other", got.PrimaryFunction)
	assert.Nil(t, got.YOEMin)
	assert.Nil(t, got.YOEMax)
	assert.Equal(t, model.WorkModeUnclear, got.WorkMode)
	assert.Equal(t, "Unknown", got.Location)
}

func TestExtract_RetriesTransportFailure(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{err: &model.HTTPError{StatusCode: 503}},
		{out: `{"work_mode":"hybrid"}`},
	}}

	got, err := newService(p).Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, model.WorkModeHybrid, got.WorkMode)
	assert.Len(t, p.prompts, 2)
}

func TestExtract_TransportExhaustion(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
	}}

	_, err := newService(p).Extract(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrExtractionFailed))
	assert.Len(t, p.prompts, 3)
}

func TestExtract_UnparseableOutputNotRetried(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{out: "I cannot help with that"},
		{out: `{"work_mode":"remote"}`},
	}}

	_, err := newService(p).Extract(context.Background(), "text")
	assert.True(t, errors.Is(err, model.ErrExtractionFailed), "got %v", err)
	assert.Len(t, p.prompts, 1, "a parse failure is reported without asking again")
}

func TestExtract_TransportRetryThenParseFailure(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{err: errors.New("connection reset")},
		{out: "no json here"},
		{out: `{"work_mode":"remote"}`},
	}}

	_, err := newService(p).Extract(context.Background(), "text")
	assert.True(t, errors.Is(err, model.ErrExtractionFailed), "got %v", err)
	assert.Len(t, p.prompts, 2)
}

func TestExtract_ClipsLongText(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{}`}}}
	long := strings.Repeat("é", maxPromptText)

	_, err := newService(p).Extract(context.Background(), long)
	require.NoError(t, err)
	assert.Less(t, len(p.prompts[0]), len(long))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(p.prompts[0]), "é"))
}

func TestEstimateSalary(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{"salary_min": 180000, "salary_max": "220000", "confidence": 0.7}`}}}

	est, err := newService(p).EstimateSalary(context.Background(), salary.Input{Title: "Staff TPM", Company: "Stripe", Text: "text"})
	require.NoError(t, err)
	require.NotNil(t, est.Min)
	require.NotNil(t, est.Max)
	assert.Equal(t, 180000, *est.Min)
	assert.Equal(t, 220000, *est.Max)
	assert.InDelta(t, 0.7, est.Confidence, 1e-9)
	assert.Contains(t, p.prompts[0], "Title: Staff TPM")
	assert.Contains(t, p.prompts[0], "Company: Stripe")
}

func TestEstimateSalary_NullRange(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{"salary_min": null, "salary_max": null, "confidence": 0.1}`}}}

	est, err := newService(p).EstimateSalary(context.Background(), salary.Input{Text: "text"})
	require.NoError(t, err)
	assert.Nil(t, est.Min)
	assert.Nil(t, est.Max)
}
