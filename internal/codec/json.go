package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
)

// TaggedPoll is the transport form of a poll: a single-key object naming the
// record version, e.g. {"V1": {...}}.
type TaggedPoll struct {
	Poll *domain.Poll
}

func (t TaggedPoll) MarshalJSON() ([]byte, error) {
	if t.Poll == nil {
		return []byte("null"), nil
	}
	version := t.Poll.Version
	if version == 0 {
		version = domain.CurrentVersion
	}
	if version != domain.V1 {
		return nil, fmt.Errorf("codec: %w: %d", domain.ErrUnsupportedVersion, version)
	}
	return json.Marshal(map[string]*domain.Poll{version.String(): t.Poll})
}

func (t *TaggedPoll) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: poll: %v", domain.ErrInvalidInput, err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("%w: poll must carry exactly one version tag, got %d", domain.ErrInvalidInput, len(tagged))
	}
	for tag, raw := range tagged {
		if tag != domain.V1.String() {
			return fmt.Errorf("%w: tag %q", domain.ErrUnsupportedVersion, tag)
		}
		var p domain.Poll
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("%w: poll %s: %v", domain.ErrInvalidInput, tag, err)
		}
		p.Version = domain.V1
		if p.Options == nil {
			p.Options = []domain.PollOption{}
		}
		if p.Votes == nil {
			p.Votes = []domain.Vote{}
		}
		t.Poll = &p
	}
	return nil
}

// EncodePollJSON renders p in its tagged transport form.
func EncodePollJSON(p *domain.Poll) ([]byte, error) {
	return json.Marshal(TaggedPoll{Poll: p})
}

// DecodePollJSON parses the tagged transport form.
func DecodePollJSON(data []byte) (*domain.Poll, error) {
	var t TaggedPoll
	if err := json.Unmarshal(data, &t); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return nil, err
	}
	if t.Poll == nil {
		return nil, fmt.Errorf("%w: poll is null", domain.ErrInvalidInput)
	}
	return t.Poll, nil
}
