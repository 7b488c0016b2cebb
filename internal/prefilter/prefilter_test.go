package prefilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetymap/events-cli/internal/model"
)

func TestMatch(t *testing.T) {
	f := New()

	tests := []struct {
		name string
		cand model.Candidate
		want bool
	}{
		{
			name: "safety phrase in title",
			cand: model.Candidate{Title: "AI Safety Unconference"},
			want: true,
		},
		{
			name: "unrelated meetup",
			cand: model.Candidate{Title: "Weekly Yoga Meetup"},
			want: false,
		},
		{
			name: "acronym inside larger word must not match",
			cand: model.Candidate{Title: "Export tutorial", Description: "available in multiple formats"},
			want: false,
		},
		{
			name: "acronym at word boundary matches",
			cand: model.Candidate{Title: "MATS winter cohort info session"},
			want: true,
		},
		{
			name: "known org in org field",
			cand: model.Candidate{Title: "Office hours", SourceOrg: "Apart Research"},
			want: true,
		},
		{
			name: "org name in description alone does not count as org match but phrase can",
			cand: model.Candidate{Title: "Talk", Description: "hosted by an interpretability lab"},
			want: true,
		},
		{
			name: "hyphenated phrase spelling",
			cand: model.Candidate{Title: "AI-Safety reading group"},
			want: true,
		},
		{
			name: "underscored spelling",
			cand: model.Candidate{Title: "ai_alignment seminar"},
			want: true,
		},
		{
			name: "generic tech conference",
			cand: model.Candidate{Title: "CloudCon 2026", Description: "The premier kubernetes conference", SourceOrg: "CloudCon Inc"},
			want: false,
		},
		{
			name: "empty candidate",
			cand: model.Candidate{},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Match(tc.cand))
		})
	}
}

func TestApply(t *testing.T) {
	f := New()

	cands := []model.Candidate{
		{Title: "AI Safety Unconference", Source: model.SourceLuma, SourceID: "a"},
		{Title: "Weekly Yoga Meetup", Source: model.SourceLuma, SourceID: "b"},
		{Title: "Alignment workshop", Source: model.SourceForum, SourceID: "c"},
	}

	kept, rejected := f.Apply(cands)
	require.Len(t, kept, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b", rejected[0].Candidate.SourceID)
	assert.Equal(t, RejectReason, rejected[0].Reason)
}

func TestApplyEmpty(t *testing.T) {
	f := New()
	kept, rejected := f.Apply(nil)
	assert.Empty(t, kept)
	assert.Empty(t, rejected)
}

func TestLoadPhraseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	content := []byte(`
phrases:
  - custom safety phrase
word_boundary_terms:
  - xyz
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	assert.True(t, f.Match(model.Candidate{Title: "A custom safety phrase event"}))
	assert.True(t, f.Match(model.Candidate{Title: "the xyz gathering"}))
	// Built-in phrase list was overridden.
	assert.False(t, f.Match(model.Candidate{Title: "AI Safety Unconference"}))
	// Organizations key was absent, so the built-in org list still applies.
	assert.True(t, f.Match(model.Candidate{Title: "Talk", SourceOrg: "Anthropic"}))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/phrases.yaml")
	assert.Error(t, err)
}
