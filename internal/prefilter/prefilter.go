// Package prefilter implements the whitelist keyword/organization gate
// applied before any LLM cost is incurred. It is deliberately permissive:
// the evaluator is the authority on relevance, this gate only drops
// obviously unrelated noise.
package prefilter

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/safetymap/events-cli/internal/model"
)

// RejectReason is the fixed rejection string. The filter explains absence
// of signal, never the match itself.
const RejectReason = "no AI safety signal found in title, description, or organization"

// defaultOrganizations are known AI-safety organizations, matched as
// substrings against the candidate's organization field only.
var defaultOrganizations = []string{
	"anthropic",
	"redwood research",
	"far ai",
	"apart research",
	"apollo research",
	"conjecture",
	"arc evals",
	"aligned ai",
	"ai safety institute",
	"center for ai safety",
	"centre for the governance of ai",
	"machine intelligence research institute",
	"future of life institute",
	"bluedot impact",
	"effective altruism",
	"lightcone",
	"constellation",
}

// defaultPhrases are long, unambiguous safety-domain phrases matched as
// substrings anywhere in the combined title+description+org text.
var defaultPhrases = []string{
	"ai safety",
	"ai alignment",
	"alignment research",
	"ai governance",
	"ai policy",
	"existential risk",
	"catastrophic risk",
	"interpretability",
	"mechanistic interp",
	"ai risk",
	"agi safety",
	"frontier model",
	"model evaluation",
	"responsible scaling",
	"ai control",
	"scalable oversight",
	"red teaming",
	"compute governance",
	"eliciting latent knowledge",
	"ai evals",
}

// defaultBoundaryTerms are short or ambiguous terms and org acronyms that
// only count at word boundaries, so "mats" never fires inside "formats".
var defaultBoundaryTerms = []string{
	"mats",
	"miri",
	"cais",
	"chai",
	"arena",
	"seri",
	"xrisk",
	"x-risk",
	"rlhf",
	"agi",
	"aisc",
	"govai",
	"alignment",
}

// phraseFile is the YAML shape of an external phrase-list override.
type phraseFile struct {
	Organizations     []string `yaml:"organizations"`
	Phrases           []string `yaml:"phrases"`
	WordBoundaryTerms []string `yaml:"word_boundary_terms"`
}

// Rejection pairs a filtered-out candidate with its reason.
type Rejection struct {
	Candidate model.Candidate
	Reason    string
}

// Filter is a compiled whitelist matcher.
type Filter struct {
	orgs          []string
	phrases       []string
	boundaryTerms []*regexp.Regexp
}

// New builds a Filter from the built-in curated lists.
func New() *Filter {
	return build(defaultOrganizations, defaultPhrases, defaultBoundaryTerms)
}

// Load builds a Filter from a YAML phrase file. Missing keys fall back to
// the built-in list for that key.
func Load(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prefilter: read phrases file %s", path)
	}

	var pf phraseFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrapf(err, "prefilter: parse phrases file %s", path)
	}

	orgs := pf.Organizations
	if len(orgs) == 0 {
		orgs = defaultOrganizations
	}
	phrases := pf.Phrases
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}
	terms := pf.WordBoundaryTerms
	if len(terms) == 0 {
		terms = defaultBoundaryTerms
	}

	return build(orgs, phrases, terms), nil
}

func build(orgs, phrases, boundaryTerms []string) *Filter {
	f := &Filter{}
	for _, o := range orgs {
		f.orgs = append(f.orgs, normalizeText(o))
	}
	for _, p := range phrases {
		f.phrases = append(f.phrases, normalizeText(p))
	}
	for _, t := range boundaryTerms {
		t = normalizeText(t)
		if t == "" {
			continue
		}
		f.boundaryTerms = append(f.boundaryTerms, regexp.MustCompile(`\b`+regexp.QuoteMeta(t)+`\b`))
	}
	return f
}

// Apply partitions candidates into kept and rejected. Every rejection
// carries the fixed RejectReason.
func (f *Filter) Apply(cands []model.Candidate) ([]model.Candidate, []Rejection) {
	var kept []model.Candidate
	var rejected []Rejection

	for _, c := range cands {
		if f.Match(c) {
			kept = append(kept, c)
		} else {
			rejected = append(rejected, Rejection{Candidate: c, Reason: RejectReason})
		}
	}

	if len(rejected) > 0 {
		zap.L().Info("prefilter: filtered candidates",
			zap.Int("kept", len(kept)),
			zap.Int("rejected", len(rejected)),
		)
	}

	return kept, rejected
}

// Match reports whether a single candidate carries any whitelist signal.
func (f *Filter) Match(c model.Candidate) bool {
	org := normalizeText(c.SourceOrg)
	combined := normalizeText(c.Title + " " + c.Description + " " + c.SourceOrg)

	// Known organization, matched against the org field specifically.
	if org != "" {
		for _, o := range f.orgs {
			if strings.Contains(org, o) {
				return true
			}
		}
	}

	// Long unambiguous phrase anywhere in the combined text.
	for _, p := range f.phrases {
		if strings.Contains(combined, p) {
			return true
		}
	}

	// Short/ambiguous term only at word boundaries.
	for _, re := range f.boundaryTerms {
		if re.MatchString(combined) {
			return true
		}
	}

	return false
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeText lowercases and normalizes separators so that hyphenated and
// underscored spellings match their spaced forms.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ", "&", " ").Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
