package robokassa

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ShpCorrelation carries the local correlation id through the payment form.
const ShpCorrelation = "Shp_tx"

var (
	ErrInvalidResultSignature = errors.New("robokassa: invalid result signature")
	ErrMissingCorrelation     = errors.New("robokassa: missing " + ShpCorrelation)
)

// ResultNotification is a parsed ResultURL callback.
// RoboKassa sends it as form parameters, not JSON.
type ResultNotification struct {
	OutSum         string
	InvID          int64
	SignatureValue string
	Shp            map[string]string
}

// CorrelationID returns the Shp_tx value, case-insensitively.
func (n *ResultNotification) CorrelationID() string {
	for k, v := range n.Shp {
		if strings.EqualFold(k, ShpCorrelation) {
			return v
		}
	}
	return ""
}

// Amount parses OutSum.
func (n *ResultNotification) Amount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(n.OutSum))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid OutSum %q: %w", n.OutSum, err)
	}
	return amount, nil
}

// ParseResultForm parses form-encoded ResultURL data.
func ParseResultForm(form map[string][]string) (*ResultNotification, error) {
	outSum := firstValue(form, "OutSum")
	invIDStr := firstValue(form, "InvId")
	signature := firstValue(form, "SignatureValue")

	if outSum == "" {
		return nil, fmt.Errorf("OutSum is required")
	}
	if invIDStr == "" {
		return nil, fmt.Errorf("InvId is required")
	}
	if signature == "" {
		return nil, fmt.Errorf("SignatureValue is required")
	}

	invID, err := strconv.ParseInt(invIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid InvId: %w", err)
	}

	shp := make(map[string]string)
	for key, values := range form {
		if strings.HasPrefix(strings.ToLower(key), "shp_") && len(values) > 0 {
			shp[key] = values[0]
		}
	}

	return &ResultNotification{
		OutSum:         outSum,
		InvID:          invID,
		SignatureValue: signature,
		Shp:            shp,
	}, nil
}

// VerifyResult checks the ResultURL signature with password #2.
func VerifyResult(n *ResultNotification, password2 string, algo HashAlgorithm) error {
	if password2 == "" || n.SignatureValue == "" {
		return ErrInvalidResultSignature
	}
	base := ResultSignatureBase(n.OutSum, strconv.FormatInt(n.InvID, 10), password2, n.Shp)
	expected, err := Sign(base, algo)
	if err != nil {
		return err
	}
	if !VerifySignature(expected, n.SignatureValue) {
		return ErrInvalidResultSignature
	}
	return nil
}

func firstValue(values map[string][]string, key string) string {
	for k, v := range values {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
