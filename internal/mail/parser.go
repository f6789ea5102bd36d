package mail

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
)

var (
	// dollarAmountRe matches $1,234.56 style amounts
	dollarAmountRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// bareAmountRe matches 1234.56 style amounts without a currency symbol
	bareAmountRe = regexp.MustCompile(`\b([0-9][0-9,]*\.[0-9]{2})\b`)

	// dueLineRe anchors provider-bill extraction to the line naming the due total
	dueLineRe = regexp.MustCompile(`(?i)(?:amount|total|balance)\s+due[^0-9$]*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// dateRe matches common date spellings inside payment mail
	dateRe = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2})\b`)
)

// ParseAmount extracts the first monetary amount from free text,
// preferring a $-prefixed value
func ParseAmount(text string) (decimal.Decimal, error) {
	if m := dollarAmountRe.FindStringSubmatch(text); m != nil {
		return parseDecimal(m[1])
	}
	if m := bareAmountRe.FindStringSubmatch(text); m != nil {
		return parseDecimal(m[1])
	}
	return decimal.Zero, fmt.Errorf("no amount found")
}

// ParsePayment extracts a payment signal from a mail message.
// The sender comes from the From header, the amount from the first monetary
// value in the body (or snippet when the body is absent), and the date from
// the body when present, otherwise the receive timestamp.
func ParsePayment(msg *Message) (models.Payment, error) {
	text := msg.Body
	if text == "" {
		text = msg.Snippet
	}

	amount, err := ParseAmount(text)
	if err != nil {
		return models.Payment{}, fmt.Errorf("parse payment from message %s: %w", msg.ID, err)
	}

	date := msg.ReceivedAt
	if m := dateRe.FindStringSubmatch(text); m != nil {
		if parsed, perr := parseDate(m[1]); perr == nil {
			date = parsed
		}
	}

	return models.Payment{
		MessageID: msg.ID,
		Sender:    msg.From,
		Date:      date,
		Amount:    amount,
	}, nil
}

// ParseProviderAmount extracts the amount due from a provider bill message.
// It anchors on an "amount due" style line; a bill mail with no such line
// falls back to the first monetary value.
func ParseProviderAmount(msg *Message) (decimal.Decimal, error) {
	text := msg.Body
	if text == "" {
		text = msg.Snippet
	}

	if m := dueLineRe.FindStringSubmatch(text); m != nil {
		return parseDecimal(m[1])
	}

	return ParseAmount(text)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"1/2/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
