package orders

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid monetary amount")

var currencyTokens = regexp.MustCompile(`(?i)(?:rs\.?|inr|₹|\$|€|£)`)
var amountShape = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

// ParseAmount parses rendered monetary text such as "₹1,234.50", "Rs. 99" or "-₹20"
// into a decimal, currency symbols, thousands separators and whitespace are ignored.
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := currencyTokens.ReplaceAllString(text, "")
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\t', '\n':
			return -1
		case '\u2212':
			return '-'
		}
		return r
	}, cleaned)

	if !amountShape.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("%w: '%s'", ErrInvalidAmount, text)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: '%s': %s", ErrInvalidAmount, text, err.Error())
	}
	return amount, nil
}
