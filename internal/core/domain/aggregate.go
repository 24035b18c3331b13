package domain

// Aggregate computes the mean non-abstaining score per option. Options that
// never received a score are left out of the result entirely; the returned
// map is never nil.
//
// The mean is kept as a running value so that finite scores always produce a
// finite mean, even near the float64 limits.
func Aggregate(votes []Vote, options []PollOption) Result {
	type acc struct {
		mean  float64
		count int
	}

	totals := make(map[OptionID]*acc, len(options))
	for _, opt := range options {
		totals[opt.ID] = &acc{}
	}

	for _, v := range votes {
		for opt, s := range v.Scores {
			if s == nil {
				continue
			}
			a, ok := totals[opt]
			if !ok {
				continue
			}
			a.count++
			n := float64(a.count)
			a.mean += *s/n - a.mean/n
		}
	}

	result := make(Result, len(options))
	for _, opt := range options {
		a := totals[opt.ID]
		if a.count == 0 {
			continue
		}
		mean := a.mean
		result[opt.ID] = &mean
	}
	return result
}

// AppendVote returns a copy of p with v appended and the result recomputed.
func AppendVote(p *Poll, v Vote) *Poll {
	next := p.Clone()
	next.Votes = append(next.Votes, v.Clone())
	next.Result = Aggregate(next.Votes, next.Options)
	return next
}
