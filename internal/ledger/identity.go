package ledger

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NoPhone stands in for the phone part of an identity key when the customer
// gave no phone number. Customers with the same name and no phone therefore
// share one ledger.
const NoPhone = "NA"

func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func IdentityKey(name string, phone string) string {
	digits := PhoneDigits(phone)
	if digits == "" {
		digits = NoPhone
	}
	return NameKey(name) + "|" + digits
}

// FormatPhone returns the international display form of a phone number, or
// an empty string when it cannot be parsed for the region. It never affects
// the identity key.
func FormatPhone(phone string, region string) string {
	if strings.TrimSpace(phone) == "" {
		return ""
	}
	num, err := libphonenumber.Parse(phone, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return ""
	}
	return libphonenumber.Format(num, libphonenumber.INTERNATIONAL)
}
