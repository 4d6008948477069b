package quota

import "connectfill/lib/textutil"

// Rule maps a category label to a kind when any keyword is a substring of the
// label (case-insensitive).
type Rule struct {
	Kind     Kind     `json:"kind"`
	Keywords []string `json:"keywords"`
}

// DefaultRules covers the English and Chinese labels of the requirement table.
// Reading rules come first, a label mentioning both is a reading requirement.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: KindRead, Keywords: []string{"read", "view", "topic", "阅读", "浏览"}},
		{Kind: KindLike, Keywords: []string{"like", "赞"}},
	}
}

type Classifier struct {
	rules []Rule
}

// NewClassifier uses DefaultRules when rules is empty.
func NewClassifier(rules []Rule) Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return Classifier{rules: rules}
}

// Classify returns the kind of the first rule matching label.
func (c Classifier) Classify(label string) (Kind, bool) {
	for _, r := range c.rules {
		if textutil.MatchName(label, r.Keywords) {
			return r.Kind, true
		}
	}
	return "", false
}
