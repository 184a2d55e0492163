package shipping

import (
	"errors"
	"strings"
)

const (
	MethodStandard = "standard"
	MethodExpress  = "express"

	StandardCents = 499
	ExpressCents  = 1499
	// FreeStandardFromCents is the subtotal at which standard shipping becomes free.
	FreeStandardFromCents = 10000
)

var ErrUnknownMethod = errors.New("unknown shipping method")

type Option struct {
	Code       string
	Label      string
	PriceCents int
}

// Options lists the methods with prices for the given subtotal.
func Options(subtotalCents int) []Option {
	std, _ := Quote(MethodStandard, subtotalCents)
	exp, _ := Quote(MethodExpress, subtotalCents)
	return []Option{
		{Code: MethodStandard, Label: "Standard (3-5 business days)", PriceCents: std},
		{Code: MethodExpress, Label: "Express (1-2 business days)", PriceCents: exp},
	}
}

func Quote(method string, subtotalCents int) (int, error) {
	switch NormalizeMethod(method) {
	case MethodStandard:
		if subtotalCents >= FreeStandardFromCents {
			return 0, nil
		}
		return StandardCents, nil
	case MethodExpress:
		return ExpressCents, nil
	default:
		return 0, ErrUnknownMethod
	}
}

func NormalizeMethod(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "" {
		return MethodStandard
	}
	return m
}
