// AngelaMos | 2026
// card.go

package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/auramanager/aura-api/internal/core"
)

// DeclineCardNumber is the test card the simulated gateway always declines.
const DeclineCardNumber = "4000000000000002"

type CardCharge struct {
	Number      string
	AmountCents int64
	Currency    string
	Description string
}

// CardGateway charges a card and returns the gateway reference.
type CardGateway interface {
	Charge(ctx context.Context, charge CardCharge) (string, error)
}

// SimulatedGateway approves every valid card except DeclineCardNumber.
// No money moves.
type SimulatedGateway struct{}

func (SimulatedGateway) Charge(_ context.Context, charge CardCharge) (string, error) {
	if charge.Number == DeclineCardNumber {
		return "", core.PaymentDeclinedError("your card was declined")
	}

	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate charge reference: %w", err)
	}
	return "sim_" + hex.EncodeToString(b[:]), nil
}

// normalizeCardNumber strips spaces and dashes users type between groups.
func normalizeCardNumber(n string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(n)
}

func luhnValid(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

func cardBrand(number string) string {
	prefix2, _ := strconv.Atoi(number[:2])
	prefix4, _ := strconv.Atoi(number[:4])

	switch {
	case number[0] == '4':
		return "visa"
	case prefix2 >= 51 && prefix2 <= 55, prefix4 >= 2221 && prefix4 <= 2720:
		return "mastercard"
	case prefix2 == 34 || prefix2 == 37:
		return "amex"
	case prefix4 == 6011 || prefix2 == 65:
		return "discover"
	default:
		return "card"
	}
}

// parseExpiry reads MM/YY and reports whether the card is still valid in
// the month of now.
func parseExpiry(expiry string, now time.Time) error {
	mm, yy, ok := strings.Cut(strings.TrimSpace(expiry), "/")
	if !ok || len(mm) != 2 || len(yy) != 2 {
		return core.ValidationError("expiry must be in MM/YY format")
	}

	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return core.ValidationError("expiry month must be between 01 and 12")
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return core.ValidationError("expiry year must be two digits")
	}

	expires := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(expires) {
		return core.ValidationError("card has expired")
	}

	return nil
}
