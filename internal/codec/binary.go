// Package codec converts polls to and from their storage and transport
// representations.
//
// The storage representation is a framed record:
//
//	'S' 'P' | version | uvarint body length | body | CRC-32C (big endian)
//
// where the body is protobuf wire format. Map-valued fields are written in
// sorted key order so that equal polls always encode to identical bytes.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
)

const (
	magic0     = 'S'
	magic1     = 'P'
	headerLen  = 3
	trailerLen = 4
)

// Poll fields.
const (
	fieldPollID          protowire.Number = 1
	fieldPollTitle       protowire.Number = 2
	fieldPollDescription protowire.Number = 3
	fieldPollOption      protowire.Number = 4
	fieldPollVote        protowire.Number = 5
	fieldPollResult      protowire.Number = 6
)

// PollOption fields.
const (
	fieldOptionID          protowire.Number = 1
	fieldOptionTitle       protowire.Number = 2
	fieldOptionDescription protowire.Number = 3
)

// Vote fields.
const (
	fieldVoteUserID    protowire.Number = 1
	fieldVoteVoterName protowire.Number = 2
	fieldVoteScore     protowire.Number = 3
)

// Result fields.
const (
	fieldResultEntry protowire.Number = 1
)

// Score entry fields. A missing value is an abstention.
const (
	fieldEntryOption protowire.Number = 1
	fieldEntryValue  protowire.Number = 2
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CorruptionError reports stored bytes that cannot be decoded into a poll.
type CorruptionError struct {
	Err error
}

func (err *CorruptionError) Error() string {
	return fmt.Sprintf("codec: corrupt poll record: %s", err.Err.Error())
}

func (err *CorruptionError) Unwrap() []error {
	return []error{domain.ErrCorrupt, err.Err}
}

func corruptf(format string, args ...any) error {
	return &CorruptionError{Err: fmt.Errorf(format, args...)}
}

// MarshalPoll encodes p in the storage format. A zero Version is written as
// the current version.
func MarshalPoll(p *domain.Poll) ([]byte, error) {
	if p == nil {
		return nil, errors.New("codec: cannot marshal a nil poll")
	}
	version := p.Version
	if version == 0 {
		version = domain.CurrentVersion
	}
	if version != domain.V1 {
		return nil, fmt.Errorf("codec: %w: %d", domain.ErrUnsupportedVersion, version)
	}

	if err := checkUTF8(p); err != nil {
		return nil, err
	}

	body := appendPollV1(nil, p)

	out := make([]byte, 0, headerLen+binary.MaxVarintLen64+len(body)+trailerLen)
	out = append(out, magic0, magic1, byte(version))
	out = protowire.AppendVarint(out, uint64(len(body)))
	out = append(out, body...)
	out = binary.BigEndian.AppendUint32(out, crc32.Checksum(out, castagnoli))
	return out, nil
}

// UnmarshalPoll decodes a record written by MarshalPoll. Truncated, altered or
// otherwise malformed input fails with an error matching domain.ErrCorrupt;
// an unknown version tag additionally matches domain.ErrUnsupportedVersion.
func UnmarshalPoll(data []byte) (*domain.Poll, error) {
	if len(data) < headerLen+1+trailerLen {
		return nil, corruptf("record too short (%d bytes)", len(data))
	}
	if data[0] != magic0 || data[1] != magic1 {
		return nil, corruptf("bad magic %q", data[:2])
	}

	n := len(data) - trailerLen
	want := binary.BigEndian.Uint32(data[n:])
	if got := crc32.Checksum(data[:n], castagnoli); got != want {
		return nil, corruptf("checksum mismatch: stored %08x, computed %08x", want, got)
	}

	bodyLen, m := protowire.ConsumeVarint(data[headerLen:n])
	if m < 0 {
		return nil, corruptf("body length: %v", protowire.ParseError(m))
	}
	body := data[headerLen+m : n]
	if uint64(len(body)) != bodyLen {
		return nil, corruptf("body is %d bytes, header says %d", len(body), bodyLen)
	}

	switch version := domain.Version(data[2]); version {
	case domain.V1:
		p, err := consumePollV1(body)
		if err != nil {
			return nil, err
		}
		p.Version = domain.V1
		return p, nil
	default:
		return nil, &CorruptionError{Err: fmt.Errorf("%w: tag %d", domain.ErrUnsupportedVersion, data[2])}
	}
}

func appendPollV1(b []byte, p *domain.Poll) []byte {
	b = appendString(b, fieldPollID, string(p.ID))
	b = appendString(b, fieldPollTitle, p.Title)
	b = appendString(b, fieldPollDescription, p.Description)
	for _, opt := range p.Options {
		var ob []byte
		ob = appendString(ob, fieldOptionID, string(opt.ID))
		ob = appendString(ob, fieldOptionTitle, opt.Title)
		ob = appendString(ob, fieldOptionDescription, opt.Description)
		b = appendMessage(b, fieldPollOption, ob)
	}
	for _, v := range p.Votes {
		var vb []byte
		vb = appendString(vb, fieldVoteUserID, v.UserID)
		vb = appendString(vb, fieldVoteVoterName, v.VoterName)
		vb = appendEntries(vb, fieldVoteScore, v.Scores)
		b = appendMessage(b, fieldPollVote, vb)
	}
	if p.Result != nil {
		b = appendMessage(b, fieldPollResult, appendEntries(nil, fieldResultEntry, p.Result))
	}
	return b
}

// checkUTF8 rejects text the decoder would refuse as corrupt.
func checkUTF8(p *domain.Poll) error {
	bad := func(field string) error {
		return fmt.Errorf("codec: %w: poll %s has invalid UTF-8 in %s", domain.ErrInvalidInput, p.ID, field)
	}
	if !utf8.ValidString(string(p.ID)) || !utf8.ValidString(p.Title) || !utf8.ValidString(p.Description) {
		return bad("poll fields")
	}
	for _, o := range p.Options {
		if !utf8.ValidString(string(o.ID)) || !utf8.ValidString(o.Title) || !utf8.ValidString(o.Description) {
			return bad("an option")
		}
	}
	for _, v := range p.Votes {
		if !utf8.ValidString(v.UserID) || !utf8.ValidString(v.VoterName) {
			return bad("a vote")
		}
		for k := range v.Scores {
			if !utf8.ValidString(string(k)) {
				return bad("a vote")
			}
		}
	}
	for k := range p.Result {
		if !utf8.ValidString(string(k)) {
			return bad("the result")
		}
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendEntries[M ~map[domain.OptionID]*float64](b []byte, num protowire.Number, entries M) []byte {
	keys := make([]domain.OptionID, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		var eb []byte
		eb = appendString(eb, fieldEntryOption, string(k))
		if v := entries[k]; v != nil {
			eb = protowire.AppendTag(eb, fieldEntryValue, protowire.Fixed64Type)
			eb = protowire.AppendFixed64(eb, math.Float64bits(*v))
		}
		b = appendMessage(b, num, eb)
	}
	return b
}

// walk calls fn for every field in b. fn returns how many bytes of v it
// consumed.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corruptf("field tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func takeBytes(num protowire.Number, typ protowire.Type, v []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, corruptf("field %d: wire type %d, want bytes", num, typ)
	}
	out, n := protowire.ConsumeBytes(v)
	if n < 0 {
		return nil, 0, corruptf("field %d: %v", num, protowire.ParseError(n))
	}
	return out, n, nil
}

func takeString(num protowire.Number, typ protowire.Type, v []byte) (string, int, error) {
	raw, n, err := takeBytes(num, typ, v)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(raw) {
		return "", 0, corruptf("field %d: invalid utf-8", num)
	}
	return string(raw), n, nil
}

// once rejects a second occurrence of a singular field.
type once map[protowire.Number]bool

func (o once) mark(num protowire.Number) error {
	if o[num] {
		return corruptf("field %d repeated", num)
	}
	o[num] = true
	return nil
}

func (o once) require(nums ...protowire.Number) error {
	for _, num := range nums {
		if !o[num] {
			return corruptf("field %d missing", num)
		}
	}
	return nil
}

func consumePollV1(b []byte) (*domain.Poll, error) {
	p := &domain.Poll{
		Options: []domain.PollOption{},
		Votes:   []domain.Vote{},
	}
	seen := once{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldPollID, fieldPollTitle, fieldPollDescription:
			if err := seen.mark(num); err != nil {
				return 0, err
			}
			s, n, err := takeString(num, typ, v)
			if err != nil {
				return 0, err
			}
			switch num {
			case fieldPollID:
				p.ID = domain.PollID(s)
			case fieldPollTitle:
				p.Title = s
			default:
				p.Description = s
			}
			return n, nil
		case fieldPollOption:
			raw, n, err := takeBytes(num, typ, v)
			if err != nil {
				return 0, err
			}
			opt, err := consumeOption(raw)
			if err != nil {
				return 0, err
			}
			p.Options = append(p.Options, opt)
			return n, nil
		case fieldPollVote:
			raw, n, err := takeBytes(num, typ, v)
			if err != nil {
				return 0, err
			}
			vote, err := consumeVote(raw)
			if err != nil {
				return 0, err
			}
			p.Votes = append(p.Votes, vote)
			return n, nil
		case fieldPollResult:
			if err := seen.mark(num); err != nil {
				return 0, err
			}
			raw, n, err := takeBytes(num, typ, v)
			if err != nil {
				return 0, err
			}
			result := domain.Result{}
			err = walk(raw, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
				if num != fieldResultEntry {
					return 0, corruptf("result: unknown field %d", num)
				}
				return consumeEntry(num, typ, v, result)
			})
			if err != nil {
				return 0, err
			}
			p.Result = result
			return n, nil
		default:
			return 0, corruptf("poll: unknown field %d", num)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require(fieldPollID, fieldPollTitle, fieldPollDescription); err != nil {
		return nil, err
	}
	return p, nil
}

func consumeOption(b []byte) (domain.PollOption, error) {
	var opt domain.PollOption
	seen := once{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num < fieldOptionID || num > fieldOptionDescription {
			return 0, corruptf("option: unknown field %d", num)
		}
		if err := seen.mark(num); err != nil {
			return 0, err
		}
		s, n, err := takeString(num, typ, v)
		if err != nil {
			return 0, err
		}
		switch num {
		case fieldOptionID:
			opt.ID = domain.OptionID(s)
		case fieldOptionTitle:
			opt.Title = s
		default:
			opt.Description = s
		}
		return n, nil
	})
	if err != nil {
		return opt, err
	}
	return opt, seen.require(fieldOptionID, fieldOptionTitle, fieldOptionDescription)
}

func consumeVote(b []byte) (domain.Vote, error) {
	vote := domain.Vote{Scores: map[domain.OptionID]*float64{}}
	seen := once{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldVoteUserID, fieldVoteVoterName:
			if err := seen.mark(num); err != nil {
				return 0, err
			}
			s, n, err := takeString(num, typ, v)
			if err != nil {
				return 0, err
			}
			if num == fieldVoteUserID {
				vote.UserID = s
			} else {
				vote.VoterName = s
			}
			return n, nil
		case fieldVoteScore:
			return consumeEntry(num, typ, v, vote.Scores)
		default:
			return 0, corruptf("vote: unknown field %d", num)
		}
	})
	if err != nil {
		return vote, err
	}
	return vote, seen.require(fieldVoteUserID, fieldVoteVoterName)
}

// consumeEntry decodes one option/score pair into dst.
func consumeEntry[M ~map[domain.OptionID]*float64](num protowire.Number, typ protowire.Type, v []byte, dst M) (int, error) {
	raw, n, err := takeBytes(num, typ, v)
	if err != nil {
		return 0, err
	}

	var (
		key   domain.OptionID
		value *float64
	)
	seen := once{}
	err = walk(raw, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if err := seen.mark(num); err != nil {
			return 0, err
		}
		switch num {
		case fieldEntryOption:
			s, n, err := takeString(num, typ, v)
			if err != nil {
				return 0, err
			}
			key = domain.OptionID(s)
			return n, nil
		case fieldEntryValue:
			if typ != protowire.Fixed64Type {
				return 0, corruptf("score: wire type %d, want fixed64", typ)
			}
			bits, n := protowire.ConsumeFixed64(v)
			if n < 0 {
				return 0, corruptf("score: %v", protowire.ParseError(n))
			}
			f := math.Float64frombits(bits)
			value = &f
			return n, nil
		default:
			return 0, corruptf("score: unknown field %d", num)
		}
	})
	if err != nil {
		return 0, err
	}
	if err := seen.require(fieldEntryOption); err != nil {
		return 0, err
	}
	if _, dup := dst[key]; dup {
		return 0, corruptf("option %q scored twice", key)
	}
	dst[key] = value
	return n, nil
}
