package transition

import (
	"errors"
	"sort"

	"github.com/rotisserie/eris"
)

// ErrMalformedCodebook is returned when the code and meaning sequences of a
// codebook cannot be paired.
var ErrMalformedCodebook = errors.New("transition: malformed codebook")

// Codebook maps codes to meanings. It is immutable once built and safe for
// concurrent use by any number of block workers.
type Codebook struct {
	meanings map[int32]int16
}

// NewCodebook pairs codes[i] with meanings[i]. A length mismatch, or a code
// listed twice with different meanings, is a configuration error. Entries for
// the NoData code are ignored.
func NewCodebook(codes []int32, meanings []int16) (*Codebook, error) {
	if len(codes) != len(meanings) {
		return nil, eris.Wrapf(ErrMalformedCodebook, "%d codes but %d meanings", len(codes), len(meanings))
	}
	m := make(map[int32]int16, len(codes))
	for i, code := range codes {
		if code == NoData {
			continue
		}
		if prev, ok := m[code]; ok && prev != meanings[i] {
			return nil, eris.Wrapf(ErrMalformedCodebook, "code %d has meanings %d and %d", code, prev, meanings[i])
		}
		m[code] = meanings[i]
	}
	return &Codebook{meanings: m}, nil
}

// Len returns the number of distinct codes.
func (cb *Codebook) Len() int {
	return len(cb.meanings)
}

// Meaning returns the meaning of code, or NoData when the code is NoData or
// has no entry.
func (cb *Codebook) Meaning(code int32) int16 {
	if code == NoData {
		return NoData
	}
	return cb.meanings[code]
}

// DecodeLayer maps every transition code in codes to its meaning.
func (cb *Codebook) DecodeLayer(codes []int32) []int16 {
	out := make([]int16, len(codes))
	for i, c := range codes {
		out[i] = cb.Meaning(c)
	}
	return out
}

// Recode maps cover codes through the codebook, for legends that collapse a
// detailed classification into the few classes the classifier knows about.
// Negative inputs and codes without an entry become NoData.
func (cb *Codebook) Recode(values []int32) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		if v < 1 {
			continue
		}
		out[i] = int32(cb.Meaning(v))
	}
	return out
}

// Entry is one code/meaning pair.
type Entry struct {
	Code    int32
	Meaning int16
}

// Entries returns the codebook sorted by code.
func (cb *Codebook) Entries() []Entry {
	out := make([]Entry, 0, len(cb.meanings))
	for c, m := range cb.meanings {
		out = append(out, Entry{Code: c, Meaning: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
