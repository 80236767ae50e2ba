// completeness.go - Weighted completeness score for extracted fields
//
// The score tells the reviewer how much of the form the model filled and
// whether the values look plausible. It never changes the extracted data.

package guarantee

import (
	"math"
	"regexp"
	"time"
)

// CompletenessFactors holds the score of each factor (0-100)
type CompletenessFactors struct {
	RequiredFields  float64 `json:"required_fields"`  // required keys present
	ArabicCoverage  float64 `json:"arabic_coverage"`  // _ar keys present
	FieldValidation float64 `json:"field_validation"` // amount and dates look valid
}

// CompletenessWeights sum to 1.0
type CompletenessWeights struct {
	RequiredFields  float64
	ArabicCoverage  float64
	FieldValidation float64
}

// DefaultWeights used by Score
var DefaultWeights = CompletenessWeights{
	RequiredFields:  0.60,
	ArabicCoverage:  0.20,
	FieldValidation: 0.20,
}

// Completeness is the result of Score
type Completeness struct {
	Score          float64             `json:"score"`
	Level          string              `json:"level"`
	RequiresReview bool                `json:"requires_review"`
	Missing        []string            `json:"missing,omitempty"`
	Factors        CompletenessFactors `json:"factors"`
}

var (
	hasDigit = regexp.MustCompile(`\p{Nd}`)

	// Formats seen on UAE guarantees; anything else only loses validation points.
	dateLayouts = []string{
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"02.01.2006",
		"2006-01-02",
		"02 January 2006",
		"2 January 2006",
		"January 2, 2006",
		"02-Jan-2006",
		"02 Jan 2006",
	}
)

// Score computes the weighted completeness of f.
func Score(f Fields) Completeness {
	factors := CompletenessFactors{
		RequiredFields:  requiredScore(f),
		ArabicCoverage:  arabicScore(f),
		FieldValidation: validationScore(f),
	}

	score := factors.RequiredFields*DefaultWeights.RequiredFields +
		factors.ArabicCoverage*DefaultWeights.ArabicCoverage +
		factors.FieldValidation*DefaultWeights.FieldValidation
	score = math.Round(score*100) / 100

	missing := f.Missing()
	return Completeness{
		Score:          score,
		Level:          level(score),
		RequiresReview: score < 85 || len(missing) > 0,
		Missing:        missing,
		Factors:        factors,
	}
}

func requiredScore(f Fields) float64 {
	present := len(RequiredKeys) - len(f.Missing())
	return float64(present) * 100 / float64(len(RequiredKeys))
}

func arabicScore(f Fields) float64 {
	keys := []string{KeyBankNameAr, KeyCompanyNameAr, KeyGuaranteeTypeAr}
	present := 0
	for _, k := range keys {
		if f.Get(k) != "" {
			present++
		}
	}
	return float64(present) * 100 / float64(len(keys))
}

func validationScore(f Fields) float64 {
	checks, passed := 0, 0

	checks++
	if hasDigit.MatchString(f.Get(KeyAmount)) {
		passed++
	}
	for _, k := range []string{KeyDate, KeyGuaranteeDate} {
		checks++
		if ParseDate(f.Get(k)) != nil {
			passed++
		}
	}
	return float64(passed) * 100 / float64(checks)
}

// ParseDate tries the known layouts and returns nil when none match.
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func level(score float64) string {
	switch {
	case score >= 85:
		return "high"
	case score >= 60:
		return "medium"
	default:
		return "low"
	}
}
