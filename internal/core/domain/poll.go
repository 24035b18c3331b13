package domain

// Version tags a stored poll record layout.
type Version uint8

const (
	V1 Version = 1

	CurrentVersion = V1
)

func (v Version) String() string {
	switch v {
	case V1:
		return "V1"
	default:
		return "V?"
	}
}

type PollID string

type OptionID string

type Poll struct {
	Version     Version      `json:"-"`
	ID          PollID       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Options     []PollOption `json:"options"`
	Votes       []Vote       `json:"votes"`
	Result      Result       `json:"result"`
}

type PollOption struct {
	ID          OptionID `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Result maps an option to the mean of its non-abstaining scores. A nil
// Result means no result has been computed yet.
type Result map[OptionID]*float64

// NewPoll builds a V1 poll with no votes and no result.
func NewPoll(id PollID, title, description string, options []PollOption) *Poll {
	opts := make([]PollOption, len(options))
	copy(opts, options)
	return &Poll{
		Version:     CurrentVersion,
		ID:          id,
		Title:       title,
		Description: description,
		Options:     opts,
		Votes:       []Vote{},
	}
}

func (p *Poll) HasOption(id OptionID) bool {
	for _, opt := range p.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so a store transform never mutates a record
// another reader may still hold.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	out := *p
	out.Options = make([]PollOption, len(p.Options))
	copy(out.Options, p.Options)
	out.Votes = make([]Vote, len(p.Votes))
	for i, v := range p.Votes {
		out.Votes[i] = v.Clone()
	}
	out.Result = p.Result.Clone()
	return &out
}

func (r Result) Clone() Result {
	if r == nil {
		return nil
	}
	out := make(Result, len(r))
	for k, v := range r {
		out[k] = cloneScore(v)
	}
	return out
}

func cloneScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
