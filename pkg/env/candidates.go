package env

import "os"

// Predicate decides whether an expanded candidate is acceptable.
type Predicate func(value string) bool

// PathExists accepts values that name an existing file or directory.
func PathExists(value string) bool {
	_, err := os.Stat(value)
	return err == nil
}

// Always accepts every candidate.
func Always(string) bool { return true }

// Pair is a resolved variable with its effective value.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CandidateSet is an ordered list of alternative values for one variable.
type CandidateSet struct {
	Candidates []EnvString
	Action     MergeAction
}

// One builds a set with a single candidate.
func One(s EnvString, action MergeAction) CandidateSet {
	return CandidateSet{Candidates: []EnvString{s}, Action: action}
}

// OneStr builds a set with a single candidate from a plain string.
func OneStr(s string, action MergeAction) CandidateSet {
	return One(EnvString(s), action)
}

// Resolve expands the candidates in order against v and applies the merge
// action for the first one accepted by pred. A nil pred means PathExists.
// It returns false, leaving v untouched, when no candidate is accepted.
func (c CandidateSet) Resolve(v *View, key string, pred Predicate) (Pair, bool) {
	if pred == nil {
		pred = PathExists
	}
	for _, candidate := range c.Candidates {
		expanded := v.Expand(candidate)
		if !pred(expanded) {
			continue
		}
		effective, _ := c.Action.Apply(v, key, expanded)
		return Pair{Key: key, Value: effective}, true
	}
	return Pair{}, false
}
