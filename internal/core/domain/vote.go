package domain

import (
	"math"
	"unicode/utf8"
)

// Vote is one voter's scores. A nil score, or an option missing from Scores,
// is an abstention.
type Vote struct {
	UserID    string                `json:"user_id,omitempty"`
	VoterName string                `json:"voter_name"`
	Scores    map[OptionID]*float64 `json:"scores"`
}

// Score is a convenience for building a present score.
func Score(v float64) *float64 {
	return &v
}

func (v Vote) Clone() Vote {
	out := v
	if v.Scores != nil {
		out.Scores = make(map[OptionID]*float64, len(v.Scores))
		for k, s := range v.Scores {
			out.Scores[k] = cloneScore(s)
		}
	}
	return out
}

// ScoreRange bounds accepted scores. The zero value accepts any finite score.
type ScoreRange struct {
	Min *float64
	Max *float64
}

// ValidateScores checks the parts of a vote that do not depend on the target
// poll: text fields are valid UTF-8 and every present score is finite and
// inside the range.
func (v Vote) ValidateScores(r ScoreRange) error {
	if !utf8.ValidString(v.UserID) || !utf8.ValidString(v.VoterName) {
		return InvalidInputf("vote text must be valid UTF-8")
	}
	for opt, s := range v.Scores {
		if opt == "" {
			return InvalidInputf("vote scores an empty option id")
		}
		if !utf8.ValidString(string(opt)) {
			return InvalidInputf("option id %q is not valid UTF-8", opt)
		}
		if s == nil {
			continue
		}
		if math.IsNaN(*s) || math.IsInf(*s, 0) {
			return InvalidInputf("score for option %q is not a finite number", opt)
		}
		if r.Min != nil && *s < *r.Min {
			return InvalidInputf("score for option %q is below %g", opt, *r.Min)
		}
		if r.Max != nil && *s > *r.Max {
			return InvalidInputf("score for option %q is above %g", opt, *r.Max)
		}
	}
	return nil
}

// ValidateAgainst checks that every scored option exists on p.
func (v Vote) ValidateAgainst(p *Poll) error {
	for opt := range v.Scores {
		if !p.HasOption(opt) {
			return InvalidInputf("option %q does not exist on poll %s", opt, p.ID)
		}
	}
	return nil
}
