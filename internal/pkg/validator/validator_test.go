package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	MethodID string `json:"paymentMethodId" validate:"required,uuid"`
	Code     string `json:"code" validate:"provider_code"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	errs := Validate(&sample{MethodID: "nope", Code: "Money-Motion"})
	require.Equal(t, "Must be a valid UUID", errs["paymentMethodId"])
	require.Equal(t, "Invalid provider code", errs["code"])
}

func TestValidateOK(t *testing.T) {
	require.Nil(t, Validate(&sample{MethodID: "7a9e1c5e-8d54-4c9e-9a3f-0f3b2c4d5e6f", Code: "moneymotion"}))
}
