package swish

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,35}$`)
	localPhone       = regexp.MustCompile(`^0[1-9][0-9]{7,9}$`)
	intlPhone        = regexp.MustCompile(`^46[1-9][0-9]{7,9}$`)
)

const (
	countryCallingCode = "46"
	maxMessageLen      = 50
)

// NormalizePhone converts a Swedish local-format number to the international
// payer alias Swish expects (0707123456 -> 46707123456). Already-prefixed
// numbers pass through unchanged; anything else is rejected.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(raw))
	switch {
	case intlPhone.MatchString(phone):
		return phone, nil
	case localPhone.MatchString(phone):
		return countryCallingCode + phone[1:], nil
	default:
		return "", &ValidationError{Field: "payerAlias", Message: "not a valid Swedish phone number"}
	}
}

// ValidateReference enforces the payee payment reference shape: alphanumeric
// plus hyphen, at most 35 characters.
func ValidateReference(reference string) error {
	if !referencePattern.MatchString(reference) {
		return &ValidationError{Field: "payeePaymentReference", Message: "must be 1-35 alphanumeric or hyphen characters"}
	}
	return nil
}

// ValidateAmount accepts a positive decimal string with at most two decimals.
func ValidateAmount(amount string) error {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return &ValidationError{Field: "amount", Message: "required"}
	}
	parts := strings.Split(amount, ".")
	if len(parts) > 2 || (len(parts) == 2 && len(parts[1]) > 2) {
		return &ValidationError{Field: "amount", Message: "at most two decimal places"}
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil || value <= 0 {
		return &ValidationError{Field: "amount", Message: "must be a positive decimal"}
	}
	return nil
}

func validateMessage(message string) error {
	// Characters, not bytes: Swedish messages are routinely multi-byte.
	if utf8.RuneCountInString(message) > maxMessageLen {
		return &ValidationError{Field: "message", Message: "at most 50 characters"}
	}
	return nil
}
