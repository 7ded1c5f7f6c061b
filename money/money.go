package money

import (
	"fmt"
	"strings"

	gwerrors "github.com/scotthooker/commerce-stripe/errors"

	"github.com/shopspring/decimal"
)

// DefaultExponent is the minor-unit exponent for currencies not listed below.
const DefaultExponent int32 = 2

// Currencies whose minor unit is not 1/100 of the major unit.
var exponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "MGA": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0,
	"XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "JOD": 3, "KWD": 3, "OMR": 3, "TND": 3,
}

// Money is a decimal amount in a given currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(Exponent(m.Currency)), m.Currency)
}

// Exponent returns the number of minor-unit digits for an ISO 4217 code.
func Exponent(currency string) int32 {
	if exp, ok := exponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return DefaultExponent
}

// Representable reports whether amount fits the currency's minor unit
// exactly, e.g. 10.005 USD does not.
func Representable(amount decimal.Decimal, currency string) bool {
	return amount.Equal(amount.Round(Exponent(currency)))
}

// ToMinorUnits converts a major-unit amount to the integer minor units the
// provider expects, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	scaled := amount.Shift(Exponent(currency)).Round(0)
	bi := scaled.BigInt()
	if !bi.IsInt64() {
		return 0, gwerrors.InvalidRequest(gwerrors.CodeInvalidAmount,
			"Amount %s %s is out of range.", amount.String(), strings.ToUpper(currency))
	}
	return bi.Int64(), nil
}

// FromMinorUnits converts integer minor units back to a major-unit amount.
func FromMinorUnits(units int64, currency string) decimal.Decimal {
	return decimal.New(units, -Exponent(currency))
}

// ToMinorUnits converts m using its own currency.
func (m Money) ToMinorUnits() (int64, error) {
	return ToMinorUnits(m.Amount, m.Currency)
}
