package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const nanotonsPerTON = 9

// FormatTON renders a nanoton amount as "1.00 TON".
func FormatTON(nanotons int64) string {
	return decimal.New(nanotons, -nanotonsPerTON).StringFixed(2) + " TON"
}

// ToNano parses a TON amount such as "1.5" into nanotons.
func ToNano(amount string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("parse ton amount %q: %w", amount, err)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("ton amount %q is negative", amount)
	}

	nano := value.Shift(nanotonsPerTON)
	if !nano.Equal(nano.Truncate(0)) {
		return 0, fmt.Errorf("ton amount %q has more than %d decimals", amount, nanotonsPerTON)
	}
	return nano.IntPart(), nil
}

// FormatAmount renders a play cost in the unit of its payment method.
func FormatAmount(amount int64, method PaymentMethod) string {
	if method == PaymentMethodTON {
		return FormatTON(amount)
	}
	return fmt.Sprintf("%d Stars", amount)
}

func ShortenAddress(address string) string {
	const head, tail = 6, 4
	if len(address) <= head+tail {
		return address
	}
	return address[:head] + "..." + address[len(address)-tail:]
}
