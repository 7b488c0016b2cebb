package evaluator

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/promote"
)

func pending(id string) model.Candidate {
	return model.Candidate{
		ID:       id,
		Source:   model.SourceForum,
		SourceID: "src-" + id,
		Title:    "AI Safety Meetup",
		URL:      "https://example.org/" + id,
		Status:   model.StatusPending,
	}
}

func response(realEvent, relevant bool, score float64, extra string) string {
	return fmt.Sprintf(`{"is_real_event":%t,"is_relevant":%t,"relevance_score":%g,
"impact_score":0.5,"suggested_ev":0.5,"suggested_friction":0.3,
"event_type":"meetup","organization":"Org","is_online":false,
"duplicate_of":null,"reasoning":"fine"%s}`, realEvent, relevant, score, extra)
}

func newEvaluator(m *mockStore, llm *mockLLM, sc *mockScraper) *Evaluator {
	return New(m, llm, sc, promote.NewWriter(m), Config{Model: "claude-sonnet-4-5", WindowSize: 300})
}

func TestClassificationThresholds(t *testing.T) {
	tests := []struct {
		score   float64
		outcome Outcome
	}{
		{0.29, OutcomeRejected},
		{0.3, OutcomeReview},
		{0.59, OutcomeReview},
		{0.6, OutcomePromoted},
		{0.95, OutcomePromoted},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("score=%g", tt.score), func(t *testing.T) {
			m := newMockStore()
			llm := &mockLLM{responses: []string{response(true, true, tt.score, "")}}
			e := newEvaluator(m, llm, &mockScraper{})

			c := pending("c1")
			outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)

			switch tt.outcome {
			case OutcomeRejected:
				assert.Equal(t, model.StatusRejected, m.statuses["c1"])
			case OutcomeReview:
				assert.Equal(t, model.StatusEvaluated, m.statuses["c1"])
			case OutcomePromoted:
				assert.Equal(t, model.StatusPromoted, m.statuses["c1"])
				assert.Len(t, m.resources, 1)
			}
		})
	}
}

func TestConfiguredThresholds(t *testing.T) {
	// A stricter promote line and a looser reject line move the bands.
	tests := []struct {
		score   float64
		outcome Outcome
	}{
		{0.45, OutcomeRejected},
		{0.5, OutcomeReview},
		{0.79, OutcomeReview},
		{0.8, OutcomePromoted},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("score=%g", tt.score), func(t *testing.T) {
			m := newMockStore()
			llm := &mockLLM{responses: []string{response(true, true, tt.score, "")}}
			e := New(m, llm, &mockScraper{}, promote.NewWriter(m), Config{
				Model:            "claude-sonnet-4-5",
				WindowSize:       300,
				PromoteThreshold: 0.8,
				RejectThreshold:  0.5,
			})

			c := pending("c1")
			outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)
		})
	}
}

func TestNotRealOrNotRelevantRejected(t *testing.T) {
	for name, resp := range map[string]string{
		"not real":     response(false, true, 0.9, ""),
		"not relevant": response(true, false, 0.9, ""),
	} {
		t.Run(name, func(t *testing.T) {
			m := newMockStore()
			llm := &mockLLM{responses: []string{resp}}
			e := newEvaluator(m, llm, &mockScraper{})

			c := pending("c1")
			outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
			require.NoError(t, err)
			assert.Equal(t, OutcomeRejected, outcome)
		})
	}
}

func TestDuplicateShortCircuit(t *testing.T) {
	// A high score loses to a duplicate match.
	m := newMockStore()
	resp := `{"is_real_event":true,"is_relevant":true,"relevance_score":0.95,
"duplicate_of":"res-42","reasoning":"same event as the listed one"}`
	llm := &mockLLM{responses: []string{resp}}
	e := newEvaluator(m, llm, &mockScraper{})

	c := pending("c1")
	outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)
	assert.Empty(t, m.resources)

	require.Len(t, m.saved, 1)
	assert.Equal(t, "Duplicate of res-42. same event as the listed one", m.saved[0].Evaluation.Reasoning)
}

func TestSkipsNonPending(t *testing.T) {
	m := newMockStore()
	llm := &mockLLM{responses: []string{response(true, true, 0.9, "")}}
	e := newEvaluator(m, llm, &mockScraper{})

	c := pending("c1")
	c.Status = model.StatusEvaluated
	outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, llm.calls)
}

func TestForceReadmitsButNeverPromoted(t *testing.T) {
	m := newMockStore()
	llm := &mockLLM{responses: []string{response(true, true, 0.9, ""), response(true, true, 0.9, "")}}
	e := newEvaluator(m, llm, &mockScraper{})

	c := pending("c1")
	c.Status = model.StatusRejected
	outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, outcome)

	c2 := pending("c2")
	c2.Status = model.StatusPromoted
	outcome, _, err = e.EvaluateOne(context.Background(), &c2, nil, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestParseFailureIsHardError(t *testing.T) {
	m := newMockStore()
	llm := &mockLLM{responses: []string{"I cannot evaluate this event."}}
	e := newEvaluator(m, llm, &mockScraper{})

	c := pending("c1")
	outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)
	assert.Empty(t, m.saved)
}

func TestPromotionFailureIsError(t *testing.T) {
	m := newMockStore()
	m.insertResourceErr = eris.New("constraint violation")
	llm := &mockLLM{responses: []string{response(true, true, 0.9, "")}}
	e := newEvaluator(m, llm, &mockScraper{})

	c := pending("c1")
	outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)
	// The evaluation itself was still persisted.
	assert.Len(t, m.saved, 1)
	assert.Empty(t, m.promoted)
}

func TestScrapedTextReused(t *testing.T) {
	m := newMockStore()
	llm := &mockLLM{responses: []string{response(true, true, 0.9, "")}}
	sc := &mockScraper{}
	e := newEvaluator(m, llm, sc)

	cached := "previously scraped context"
	c := pending("c1")
	c.ScrapedText = &cached

	_, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, sc.calls)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], cached)
}

func TestScrapeFailureDegradesToMetadata(t *testing.T) {
	m := newMockStore()
	llm := &mockLLM{responses: []string{response(true, true, 0.9, "")}}
	sc := &mockScraper{err: eris.New("timeout")}
	e := newEvaluator(m, llm, sc)

	c := pending("c1")
	outcome, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, outcome)
	assert.Contains(t, llm.prompts[0], "page could not be fetched")
}

func TestStandardizedFieldsOverwriteClaims(t *testing.T) {
	m := newMockStore()
	extra := `,"event_date":"2026-09-20","event_time":"18:00","location":"Berlin, Germany"`
	llm := &mockLLM{responses: []string{response(true, true, 0.9, extra)}}
	e := newEvaluator(m, llm, &mockScraper{})

	claimed := "sometime in september"
	c := pending("c1")
	c.EventDate = &claimed
	c.Location = "Location TBD"

	_, _, err := e.EvaluateOne(context.Background(), &c, nil, false)
	require.NoError(t, err)

	require.Len(t, m.saved, 1)
	saved := m.saved[0]
	require.NotNil(t, saved.EventDate)
	assert.Equal(t, "2026-09-20", *saved.EventDate)
	assert.Equal(t, "Berlin, Germany", saved.Location)
}

func TestBatchWindowGrowsWithPromotions(t *testing.T) {
	m := newMockStore()
	m.resourceWindow = []model.WindowEntry{{ID: "res-1", Title: "Existing Conf"}}
	llm := &mockLLM{responses: []string{
		response(true, true, 0.9, `,"clean_title":"First Winner"`),
		response(true, true, 0.9, `,"clean_title":"Second Winner"`),
	}}
	e := newEvaluator(m, llm, &mockScraper{})

	tally := e.EvaluateBatch(context.Background(), []model.Candidate{pending("c1"), pending("c2")}, false, nil)
	assert.Equal(t, 2, tally.Promoted)

	// The second prompt saw both the preexisting window and the first
	// candidate's new resource.
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "Existing Conf")
	assert.Contains(t, llm.prompts[1], "First Winner")
}

func TestParseDefaults(t *testing.T) {
	c := pending("c1")
	c.Title = "Claimed Title"
	c.Description = "Claimed description."

	ev, err := parseEvaluation("```json\n{\"relevance_score\":1.7,\"impact_score\":-0.4,\"duplicate_of\":\"\"}\n```", &c)
	require.NoError(t, err)

	assert.Equal(t, 1.0, ev.RelevanceScore)
	assert.Equal(t, 0.0, ev.ImpactScore)
	assert.False(t, ev.IsRealEvent)
	assert.False(t, ev.IsRelevant)
	assert.Equal(t, model.EventTypeOther, ev.EventType)
	assert.Equal(t, "Claimed Title", ev.CleanTitle)
	assert.Equal(t, "Claimed description.", ev.CleanDescription)
	assert.Nil(t, ev.DuplicateOf)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`{"a":1}`))
}
