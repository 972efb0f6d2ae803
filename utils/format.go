package utils

import "strings"

// MaxPlateLength is the longest plate any US state issues.
const MaxPlateLength = 8

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nationalDigits(input string) string {
	d := digits(input)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

// FormatPhone applies the "(###) ###-####" mask to whatever digits are present.
// A leading US country code is dropped and extra digits are ignored.
func FormatPhone(input string) string {
	d := nationalDigits(input)
	if len(d) > 10 {
		d = d[:10]
	}
	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 3:
		return "(" + d
	case len(d) <= 6:
		return "(" + d[:3] + ") " + d[3:]
	default:
		return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
	}
}

// NormalizePhone masks a phone number for storage. Input with more than ten
// national digits is returned as bare digits so validation rejects it.
func NormalizePhone(input string) string {
	d := nationalDigits(input)
	if len(d) > 10 {
		return d
	}
	return FormatPhone(d)
}

// NormalizePlate uppercases a license plate and strips everything that is not
// a letter or digit. Length is left for validation to judge.
func NormalizePlate(input string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(input) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPlate is the as-you-type form of NormalizePlate, capped at MaxPlateLength.
func MaskPlate(input string) string {
	p := NormalizePlate(input)
	if len(p) > MaxPlateLength {
		p = p[:MaxPlateLength]
	}
	return p
}

// FormatCardNumber groups card digits in blocks of four.
func FormatCardNumber(input string) string {
	d := digits(input)
	if len(d) > 19 {
		d = d[:19]
	}
	var b strings.Builder
	for i, r := range d {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
