package filter

import "strings"

// Verdict explains why a headline passed or failed the gate.
type Verdict string

const (
	VerdictOnTopic    Verdict = "on-topic"
	VerdictNoise      Verdict = "noise"
	VerdictIncidental Verdict = "incidental"
)

// Relevance is a keyword gate separating legal/regulatory coverage from
// routine sports-result noise in broad general-sports feeds.
type Relevance struct {
	topics []string
	noise  []string
}

// New builds the gate with the default keyword sets, optionally extended
// by extra topic keywords from configuration.
func New(extraTopics ...string) *Relevance {
	topics := append([]string{}, defaultTopics...)
	for _, t := range extraTopics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			topics = append(topics, t)
		}
	}
	return &Relevance{topics: topics, noise: defaultNoise}
}

// Accept reports whether the headline is on-topic, with a verdict for
// logging. A topic keyword always wins: "team wins NIL appeal" is legal
// news even though "wins" alone is result noise.
func (r *Relevance) Accept(title string) (bool, Verdict) {
	lower := strings.ToLower(title)

	for _, kw := range r.topics {
		if strings.Contains(lower, kw) {
			return true, VerdictOnTopic
		}
	}
	for _, kw := range r.noise {
		if strings.Contains(lower, kw) {
			return false, VerdictNoise
		}
	}
	return false, VerdictIncidental
}

var defaultTopics = []string{
	"lawsuit", "sues", "sued", "litigation", "settlement", "plaintiff",
	"antitrust", "court", "judge", "ruling", "rules against", "appeal",
	"injunction", "subpoena", "deposition", "testimony", "class action",
	"nil", "name, image", "revenue sharing", "revenue-sharing",
	"collective bargaining", "employee status", "employment status",
	"eligibility", "waiver", "enforcement", "infraction", "sanction",
	"compliance", "bylaw", "legislation", "bill", "congress", "senate",
	"house committee", "statehouse", "governor signs", "title ix",
	"transfer portal rules", "governance", "attorney", "legal",
}

var defaultNoise = []string{
	"final score", "box score", "game recap", "highlights", "beats",
	"defeats", "wins over", "loses to", "routs", "upsets", "top 25",
	"power rankings", "touchdown", "buzzer-beater", "walk-off",
	"injury report", "depth chart", "kickoff time", "how to watch",
	"live updates", "score predictions",
}
