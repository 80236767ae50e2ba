// Package letter composes the bilingual bank guarantee confirmation letter.
package letter

import (
	"errors"
	"strings"

	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
)

// Separator sits between the English and Arabic letters in the joined text.
var Separator = strings.Repeat("=", 60)

// Draft is the composed letter in both languages
type Draft struct {
	English string `json:"english"`
	Arabic  string `json:"arabic"`
}

// Joined returns English and Arabic separated by a line of '='.
func (d Draft) Joined() string {
	return d.English + "\n" + Separator + "\n\n" + d.Arabic
}

// ErrNotJoined is returned by SplitJoined when the separator is absent.
var ErrNotJoined = errors.New("letter: text has no language separator")

// SplitJoined reverses Draft.Joined.
func SplitJoined(text string) (Draft, error) {
	english, arabic, ok := strings.Cut(text, "\n"+Separator+"\n\n")
	if !ok {
		return Draft{}, ErrNotJoined
	}
	return Draft{English: english, Arabic: arabic}, nil
}

// Compose fills both letter templates from f. Unset English fields render as
// empty text; Arabic names and type fall back to the English values.
func Compose(f guarantee.Fields) Draft {
	return Draft{
		English: english(f),
		Arabic:  arabic(f),
	}
}

func english(f guarantee.Fields) string {
	bank := f.Get(guarantee.KeyBankName)

	var b strings.Builder
	b.WriteString("Date: " + f.Get(guarantee.KeyDate) + "\n")
	b.WriteString("To: The Chairman\n")
	b.WriteString("Municipality and Planning Department - Ajman\n")
	b.WriteString("P.O. Box 03 Ajman, UAE\n\n")
	b.WriteString("Subject: Bank Guarantee Confirmation\n\n")
	b.WriteString("Dear Sir,\n\n")

	b.WriteString("We hereby confirm the " + strings.ToLower(f.Get(guarantee.KeyGuaranteeType)) + " issued by " + bank + ". ")
	b.WriteString("Guarantee No.: " + f.Get(guarantee.KeyGuaranteeNumber) + ", dated " + f.Get(guarantee.KeyGuaranteeDate) + ", ")
	b.WriteString("in the amount of " + f.Get(guarantee.KeyAmount) + ", issued in favor of your department ")
	b.WriteString("on behalf of " + f.Get(guarantee.KeyCompanyName) + ".\n\n")

	b.WriteString("Should you require any further information, please contact us.\n\n")
	b.WriteString("Yours faithfully,\n")
	b.WriteString("For and on behalf of " + bank + "\n")
	return b.String()
}

func arabic(f guarantee.Fields) string {
	bank := f.Localized(guarantee.KeyBankNameAr)

	var b strings.Builder
	b.WriteString("التاريخ: " + f.Get(guarantee.KeyDate) + "\n")
	b.WriteString("إلى: السيد الرئيس\n")
	b.WriteString("بلدية ودائرة التخطيط - عجمان\n")
	b.WriteString("ص.ب. 03 عجمان، الإمارات العربية المتحدة\n\n")
	b.WriteString("الموضوع: تأكيد خطاب ضمان بنكي\n\n")
	b.WriteString("سيدي العزيز،\n\n")

	b.WriteString("نؤكد بموجبه " + f.Localized(guarantee.KeyGuaranteeTypeAr) + " الصادر من " + bank + ". ")
	b.WriteString("رقم الضمان: " + f.Get(guarantee.KeyGuaranteeNumber) + "، بتاريخ " + f.Get(guarantee.KeyGuaranteeDate) + "، ")
	b.WriteString("بمبلغ " + f.Get(guarantee.KeyAmount) + "، لصالح دائرتكم ")
	b.WriteString("نيابة عن " + f.Localized(guarantee.KeyCompanyNameAr) + ".\n\n")

	b.WriteString("لأي استفسارات إضافية، يرجى التواصل معنا.\n\n")
	b.WriteString("مع خالص التقدير،\n")
	b.WriteString("بالنيابة عن " + bank + "\n")
	return b.String()
}
