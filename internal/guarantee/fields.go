// fields.go - Extracted bank guarantee fields and their normalization

package guarantee

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Guarantee type labels offered to the user. The label is passed to the
// model verbatim and selects the output template.
const (
	TypeTender      = "Tender Bond Guarantee"
	TypePerformance = "Performance Bond Guarantee"
)

// Types lists the selectable guarantee types in display order.
var Types = []string{TypeTender, TypePerformance}

// ValidType reports whether label is one of the selectable guarantee types.
func ValidType(label string) bool {
	for _, t := range Types {
		if t == label {
			return true
		}
	}
	return false
}

// Field keys returned by the model.
const (
	KeyDate            = "date"
	KeyBankName        = "bank_name"
	KeyBankNameAr      = "bank_name_ar"
	KeyGuaranteeNumber = "guarantee_number"
	KeyGuaranteeDate   = "guarantee_date"
	KeyAmount          = "amount"
	KeyCompanyName     = "company_name"
	KeyCompanyNameAr   = "company_name_ar"
	KeyGuaranteeType   = "guarantee_type"
	KeyGuaranteeTypeAr = "guarantee_type_ar"
)

// Keys is the fixed key set, in prompt order.
var Keys = []string{
	KeyDate,
	KeyBankName,
	KeyBankNameAr,
	KeyGuaranteeNumber,
	KeyGuaranteeDate,
	KeyAmount,
	KeyCompanyName,
	KeyCompanyNameAr,
	KeyGuaranteeType,
	KeyGuaranteeTypeAr,
}

// RequiredKeys must be non-empty before a letter can be generated.
var RequiredKeys = []string{
	KeyDate,
	KeyBankName,
	KeyGuaranteeNumber,
	KeyGuaranteeDate,
	KeyAmount,
	KeyCompanyName,
}

// arabicFallback maps each Arabic key to the English key it falls back to.
var arabicFallback = map[string]string{
	KeyBankNameAr:      KeyBankName,
	KeyCompanyNameAr:   KeyCompanyName,
	KeyGuaranteeTypeAr: KeyGuaranteeType,
}

// Fields holds one value per key. A nil value means the field was not found.
// After normalization every key in Keys is present.
type Fields map[string]*string

// New returns Fields with every key present and unset.
func New() Fields {
	f := make(Fields, len(Keys))
	for _, k := range Keys {
		f[k] = nil
	}
	return f
}

// FromStrings builds Fields from plain strings; empty strings become nil.
func FromStrings(values map[string]string) Fields {
	f := New()
	for _, k := range Keys {
		if v, ok := values[k]; ok {
			f[k] = clean(v)
		}
	}
	return f
}

// FromMap converts a decoded model response into Fields. Unknown keys are
// dropped, missing and null keys become nil, scalars are stringified.
func FromMap(m map[string]any) Fields {
	f := New()
	for _, k := range Keys {
		raw, ok := m[k]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			f[k] = clean(v)
		case float64:
			f[k] = clean(strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			f[k] = clean(strconv.FormatBool(v))
		default:
			f[k] = clean(fmt.Sprintf("%v", v))
		}
	}
	return f
}

func clean(s string) *string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return nil
	}
	return &s
}

// Get returns the value for key, or "" when unset.
func (f Fields) Get(key string) string {
	if v := f[key]; v != nil {
		return *v
	}
	return ""
}

// Localized returns the value for an Arabic key, falling back to its English
// counterpart when the Arabic value is unset. Other keys behave like Get.
func (f Fields) Localized(key string) string {
	if v := f.Get(key); v != "" {
		return v
	}
	if en, ok := arabicFallback[key]; ok {
		return f.Get(en)
	}
	return ""
}

// Set stores value under key; an empty value clears the field.
func (f Fields) Set(key, value string) {
	f[key] = clean(value)
}

// Strings flattens Fields into plain strings with "" for unset keys.
func (f Fields) Strings() map[string]string {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		out[k] = f.Get(k)
	}
	return out
}

// Missing returns the required keys that are still empty.
func (f Fields) Missing() []string {
	var missing []string
	for _, k := range RequiredKeys {
		if f.Get(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}
