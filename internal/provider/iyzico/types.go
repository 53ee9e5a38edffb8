package iyzico

import "encoding/json"

// Locales.
const (
	LocaleTR = "tr"
	LocaleEN = "en"
)

// Currencies.
const (
	CurrencyTRY = "TRY"
	CurrencyUSD = "USD"
)

// Payment groups and basket item types.
const (
	PaymentGroupProduct = "PRODUCT"

	BasketItemPhysical = "PHYSICAL"
	BasketItemVirtual  = "VIRTUAL"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	PaymentStatusSuccess = "SUCCESS"
)

// Buyer describes the paying customer.
type Buyer struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	GsmNumber           string `json:"gsmNumber,omitempty"`
	Email               string `json:"email"`
	IdentityNumber      string `json:"identityNumber"`
	LastLoginDate       string `json:"lastLoginDate,omitempty"`
	RegistrationDate    string `json:"registrationDate,omitempty"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
	ZipCode             string `json:"zipCode,omitempty"`
}

// Address is a billing or shipping address.
type Address struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode,omitempty"`
}

// BasketItem is one line of the basket.
type BasketItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	Category2 string `json:"category2,omitempty"`
	ItemType  string `json:"itemType"`
	Price     string `json:"price"`
}

// CheckoutFormRequest initialises a hosted checkout form.
type CheckoutFormRequest struct {
	Locale              string       `json:"locale"`
	ConversationID      string       `json:"conversationId"`
	Price               string       `json:"price"`
	PaidPrice           string       `json:"paidPrice"`
	Currency            string       `json:"currency"`
	BasketID            string       `json:"basketId"`
	PaymentGroup        string       `json:"paymentGroup"`
	CallbackURL         string       `json:"callbackUrl"`
	EnabledInstallments []int        `json:"enabledInstallments"`
	Buyer               Buyer        `json:"buyer"`
	BillingAddress      Address      `json:"billingAddress"`
	BasketItems         []BasketItem `json:"basketItems"`
}

// Result carries the fields common to every response.
type Result struct {
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	ErrorGroup     string `json:"errorGroup,omitempty"`
	Locale         string `json:"locale,omitempty"`
	SystemTime     int64  `json:"systemTime,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`

	// Raw is the undecoded response body.
	Raw json.RawMessage `json:"-"`
}

// Succeeded reports whether the provider accepted the request.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// CheckoutFormInitResult is the response to CheckoutFormRequest.
type CheckoutFormInitResult struct {
	Result
	Token               string `json:"token,omitempty"`
	CheckoutFormContent string `json:"checkoutFormContent,omitempty"`
	TokenExpireTime     int64  `json:"tokenExpireTime,omitempty"`
	PaymentPageURL      string `json:"paymentPageUrl,omitempty"`
}

// RetrieveCheckoutFormRequest looks up the outcome of a checkout form.
type RetrieveCheckoutFormRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
}

// CheckoutFormResult is the response to RetrieveCheckoutFormRequest.
type CheckoutFormResult struct {
	Result
	Token            string          `json:"token,omitempty"`
	PaymentID        string          `json:"paymentId,omitempty"`
	PaymentStatus    string          `json:"paymentStatus,omitempty"`
	AuthCode         string          `json:"authCode,omitempty"`
	FraudStatus      int             `json:"fraudStatus,omitempty"`
	Price            json.Number     `json:"price,omitempty"`
	PaidPrice        json.Number     `json:"paidPrice,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	BasketID         string          `json:"basketId,omitempty"`
	CardType         string          `json:"cardType,omitempty"`
	CardFamily       string          `json:"cardFamily,omitempty"`
	LastFourDigits   string          `json:"lastFourDigits,omitempty"`
	ItemTransactions json.RawMessage `json:"itemTransactions,omitempty"`
}

// Authorized reports whether the form completed with an authorised payment.
func (r *CheckoutFormResult) Authorized() bool {
	return r.AuthCode != "" && r.PaymentStatus == PaymentStatusSuccess
}
