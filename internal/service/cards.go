package service

import (
	"regexp"
	"strings"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{16}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
)

// ValidateCard checks the card fields in a fixed order and reports the first
// offending field. The card is never charged, so expiry is not compared with
// the current date.
func ValidateCard(card models.CardDetails) error {
	if !cardNumberPattern.MatchString(card.CardNumber) {
		return apperrors.InvalidCard("cardNumber", "card number must be exactly 16 digits")
	}
	if !expiryPattern.MatchString(card.ExpiryDate) {
		return apperrors.InvalidCard("expiryDate", "expiry date must be in MM/YY format")
	}
	if !cvvPattern.MatchString(card.CVV) {
		return apperrors.InvalidCard("cvv", "CVV must be 3 or 4 digits")
	}
	if strings.TrimSpace(card.CardHolderName) == "" {
		return apperrors.InvalidCard("cardHolderName", "card holder name is required")
	}
	return nil
}
