package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cardpay/internal/service"
)

// CheckoutDefaults fill in optional checkout fields and bound provider calls.
type CheckoutDefaults struct {
	Currency         string
	BuyerIP          string
	ProviderDeadline time.Duration
}

// CheckoutHandler handles HTTP requests for hosted checkout sessions.
type CheckoutHandler struct {
	checkout  *service.CheckoutService
	reconcile *service.ReconcileService
	defaults  CheckoutDefaults
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout *service.CheckoutService, reconcile *service.ReconcileService, defaults CheckoutDefaults) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, reconcile: reconcile, defaults: defaults}
}

// BasketItemRequest is one basket line in a checkout request.
type BasketItemRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	Category2 string `json:"category2"`
	Price     string `json:"price"`
}

// StartCheckoutRequest is the HTTP request body for starting a checkout.
type StartCheckoutRequest struct {
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	Address        string              `json:"address"`
	Phone          string              `json:"phone"`
	IdentityNumber string              `json:"identity_number"`
	City           string              `json:"city"`
	Country        string              `json:"country"`
	ZipCode        string              `json:"zip_code"`
	State          string              `json:"state"`
	TourDate       *time.Time          `json:"tour_date"`
	EndDate        *time.Time          `json:"end_date"`
	CarRental      bool                `json:"car_rental"`
	BasketItems    []BasketItemRequest `json:"basket_items"`
	Locale         string              `json:"locale"`
	Amount         string              `json:"amount"`
	Currency       string              `json:"currency"`
	IP             string              `json:"ip"`
}

// CheckoutSession is the data of a successful checkout start.
type CheckoutSession struct {
	PaymentPageURL  string `json:"payment_page_url"`
	TokenExpireTime int64  `json:"token_expire_time"`
	Token           string `json:"token"`
}

// CheckoutResponse is the HTTP response for a checkout start. Data holds a
// CheckoutSession on success and the provider's raw payload on decline.
type CheckoutResponse struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	PaymentID string `json:"payment_id"`
	Data      any    `json:"data"`
}

// CheckStatusRequest is the HTTP request body for a checkout status query.
type CheckStatusRequest struct {
	Token string `json:"token"`
}

func (h *CheckoutHandler) providerContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.defaults.ProviderDeadline <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.defaults.ProviderDeadline)
}

// StartCheckout handles POST /v1/payments/checkout/start
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "", "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondBadRequest(c, "amount", "amount must be a decimal string")
		return
	}

	items := make([]service.BasketItem, 0, len(req.BasketItems))
	for i, item := range req.BasketItems {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			respondBadRequest(c, fmt.Sprintf("basket_items[%d].price", i), "price must be a decimal string")
			return
		}
		items = append(items, service.BasketItem{
			ID:        item.ID,
			Name:      item.Name,
			Category1: item.Category1,
			Category2: item.Category2,
			Price:     price,
		})
	}

	currency := req.Currency
	if currency == "" {
		currency = h.defaults.Currency
	}
	ip := req.IP
	if ip == "" {
		ip = h.defaults.BuyerIP
	}

	ctx, cancel := h.providerContext(c)
	defer cancel()

	result, err := h.checkout.StartCheckout(ctx, service.BuyerInfo{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		IdentityNumber: req.IdentityNumber,
		Address:        req.Address,
		State:          req.State,
		City:           req.City,
		Country:        req.Country,
		ZipCode:        req.ZipCode,
		IP:             ip,
	}, service.OrderInfo{
		Amount:      amount,
		Currency:    currency,
		Locale:      req.Locale,
		Country:     req.Country,
		StartDate:   req.TourDate,
		EndDate:     req.EndDate,
		CarRental:   req.CarRental,
		BasketItems: items,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := CheckoutResponse{
		Status:    result.Status,
		Message:   result.Message,
		PaymentID: result.PaymentID,
	}
	if result.Status {
		response.Data = CheckoutSession{
			PaymentPageURL:  result.PaymentPageURL,
			TokenExpireTime: result.TokenExpireTime,
			Token:           result.Token,
		}
	} else {
		response.Data = result.ProviderPayload
	}

	respondJSON(c, http.StatusOK, response)
}

// CheckStatus handles POST /v1/payments/checkout/status
func (h *CheckoutHandler) CheckStatus(c *gin.Context) {
	var req CheckStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "", "invalid request body")
		return
	}
	h.reconcileToken(c, req.Token)
}

// Callback handles POST /v1/payments/checkout/callback, where the provider
// redirects the buyer after the hosted form. The session token arrives
// form-encoded; a JSON body is accepted too.
func (h *CheckoutHandler) Callback(c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("token"))
	if token == "" && c.ContentType() == gin.MIMEJSON {
		var req CheckStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "", "invalid request body")
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	h.reconcileToken(c, token)
}

func (h *CheckoutHandler) reconcileToken(c *gin.Context, token string) {
	ctx, cancel := h.providerContext(c)
	defer cancel()

	result, err := h.reconcile.CheckStatus(ctx, token)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(result.Raw) > 0 {
		c.Data(http.StatusOK, "application/json; charset=utf-8", result.Raw)
		return
	}
	respondJSON(c, http.StatusOK, result)
}
