// Package classify assigns natural-conversion classes to pixels from their
// decoded transition meaning, initial cover class and cropland fractions.
package classify

import (
	"math"

	"github.com/rotisserie/eris"
)

// Code is a per-pixel classification.
type Code int16

// Classification codes. Codes 1-3 count as natural conversion; 4-6 record
// cropland gain on land that was not natural and are kept for later use.
const (
	None                    Code = 0
	Conversion              Code = 1 // natural to non-natural per the transition codebook
	ConversionCropGain      Code = 2 // codebook conversion with cropland gain
	CropGainNatural         Code = 3 // cropland gain on natural land missed by the codebook
	CropGainForest          Code = 4
	CropGainUrban           Code = 5
	CropGainOther           Code = 6
	MaxCode                      = CropGainOther
	conversionMeaning int16      = 1
)

// Initial cover classes the rules care about.
const (
	CoverNatural int32 = 1
	CoverForest  int32 = 2
	CoverUrban   int32 = 4
	CoverOther   int32 = 5
)

// CropThreshold is the fraction above which a pixel is dominated by cropland.
const CropThreshold = 0.5

// Pixel holds the per-pixel inputs of the classifier.
type Pixel struct {
	Meaning      int16
	InitialCover int32
	CropInitial  float32
	CropFinal    float32
}

// CropIncrease reports whether the pixel went from non-cropland to
// cropland-dominated. NaN fractions never count as an increase.
func CropIncrease(initial, final float32) bool {
	return initial <= CropThreshold && final > CropThreshold
}

// Rule assigns Code to a pixel when Match holds for the pixel and the code
// assigned by earlier rules.
type Rule struct {
	Name  string
	Code  Code
	Match func(p Pixel, current Code) bool
}

func cropGainOn(cover int32) func(Pixel, Code) bool {
	return func(p Pixel, current Code) bool {
		return current == None && p.InitialCover == cover && CropIncrease(p.CropInitial, p.CropFinal)
	}
}

// Rules is the ordered rule table. Each rule sees the code left by the rules
// before it; a later rule overwrites only where its guard allows.
var Rules = []Rule{
	{
		Name: "transition-conversion",
		Code: Conversion,
		Match: func(p Pixel, _ Code) bool {
			return p.Meaning == conversionMeaning
		},
	},
	{
		Name: "conversion-with-cropland-gain",
		Code: ConversionCropGain,
		Match: func(p Pixel, current Code) bool {
			return current == Conversion && CropIncrease(p.CropInitial, p.CropFinal)
		},
	},
	{Name: "cropland-gain-on-natural", Code: CropGainNatural, Match: cropGainOn(CoverNatural)},
	{Name: "cropland-gain-on-forest", Code: CropGainForest, Match: cropGainOn(CoverForest)},
	{Name: "cropland-gain-on-urban", Code: CropGainUrban, Match: cropGainOn(CoverUrban)},
	{Name: "cropland-gain-on-other", Code: CropGainOther, Match: cropGainOn(CoverOther)},
}

// Classify runs the rule table over one pixel.
func Classify(p Pixel) Code {
	code := None
	for _, r := range Rules {
		if r.Match(p, code) {
			code = r.Code
		}
	}
	return code
}

// IsNaturalConversion reports whether code counts toward natural-conversion area.
func IsNaturalConversion(code Code) bool {
	return code >= Conversion && code <= CropGainNatural
}

// ClassifyLayer classifies co-registered layers pixel by pixel.
func ClassifyLayer(meaning []int16, initialCover []int32, cropInitial, cropFinal []float32) ([]Code, error) {
	n := len(meaning)
	if len(initialCover) != n || len(cropInitial) != n || len(cropFinal) != n {
		return nil, eris.Errorf("classify: layer sizes differ (meaning %d, cover %d, crop initial %d, crop final %d)",
			n, len(initialCover), len(cropInitial), len(cropFinal))
	}
	out := make([]Code, n)
	for i := range out {
		out[i] = Classify(Pixel{
			Meaning:      meaning[i],
			InitialCover: initialCover[i],
			CropInitial:  cropInitial[i],
			CropFinal:    cropFinal[i],
		})
	}
	return out, nil
}

// ValidateFraction rejects finite cropland fractions outside [0, 1]. NaN marks
// a missing observation and is allowed.
func ValidateFraction(name string, values []float32) error {
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		if f < 0 || f > 1 {
			return eris.Errorf("classify: %s fraction %v at pixel %d outside [0,1]", name, v, i)
		}
	}
	return nil
}
