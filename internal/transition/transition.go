// Package transition encodes pairs of land-cover codes into composite
// transition codes and decodes them through a codebook.
package transition

import (
	"github.com/rotisserie/eris"
)

const (
	// Multiplier separates the initial and final cover codes in a transition code.
	Multiplier int32 = 1000

	// NoData is the sentinel for cover, transition, meaning and classification layers.
	NoData = 0
)

// Encode returns initial*multiplier + final, or NoData when either code is
// below 1.
func Encode(initial, final, multiplier int32) int32 {
	if initial < 1 || final < 1 {
		return NoData
	}
	return initial*multiplier + final
}

// EncodeLayer encodes two co-registered cover layers pixel by pixel.
func EncodeLayer(initial, final []int32, multiplier int32) ([]int32, error) {
	if len(initial) != len(final) {
		return nil, eris.Errorf("transition: layer sizes differ (%d initial, %d final)", len(initial), len(final))
	}
	out := make([]int32, len(initial))
	for i := range initial {
		out[i] = Encode(initial[i], final[i], multiplier)
	}
	return out, nil
}

// Split reverses Encode for a valid transition code.
func Split(code, multiplier int32) (initial, final int32) {
	return code / multiplier, code % multiplier
}
