package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"cardpay/internal/domain"
	"cardpay/internal/provider/iyzico"
)

// CheckoutProvider is the callback-style hosted checkout API of the payment
// provider. Each call completes exactly once through done.
type CheckoutProvider interface {
	CreateCheckoutForm(ctx context.Context, req *iyzico.CheckoutFormRequest, done func(*iyzico.CheckoutFormInitResult, error))
	RetrieveCheckoutForm(ctx context.Context, req *iyzico.RetrieveCheckoutFormRequest, done func(*iyzico.CheckoutFormResult, error))
}

var _ CheckoutProvider = (*iyzico.Client)(nil)

// UserProvisioner creates and looks up the internal users checkout buyers map to.
type UserProvisioner interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

var _ UserProvisioner = (*UserService)(nil)

// SplitBuyerName splits a full name into given and family names. The first
// token is the given name and the second the family name; with three or more
// tokens the first two form the given name and the third the family name.
func SplitBuyerName(full string) (given, family string) {
	parts := strings.Split(full, " ")
	given = parts[0]
	if len(parts) > 1 {
		family = parts[1]
	}
	if len(parts) > 2 {
		given = parts[0] + " " + parts[1]
		family = parts[2]
	}
	return given, family
}

// providerLocale maps a requested locale to the provider's locale.
func providerLocale(locale string) string {
	if strings.EqualFold(locale, "EN") {
		return iyzico.LocaleEN
	}
	return iyzico.LocaleTR
}

// providerCurrency maps a requested currency to the provider's currency.
func providerCurrency(currency string) string {
	if strings.EqualFold(currency, "USD") {
		return iyzico.CurrencyUSD
	}
	return iyzico.CurrencyTRY
}

// randomPassword returns a throwaway password for internally provisioned users.
func randomPassword(length int) (string, error) {
	b := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.StdEncoding.EncodeToString(b)[:length]
	s = strings.ReplaceAll(s, "+", "0")
	return strings.ReplaceAll(s, "/", "0"), nil
}
