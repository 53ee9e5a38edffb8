package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cardpay/internal/domain"
	"cardpay/internal/middleware"
	"cardpay/internal/service"
)

// CardHandler handles HTTP requests for the caller's stored cards.
type CardHandler struct {
	cardService *service.CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardService *service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// CreateCardRequest is the HTTP request body for storing a card.
type CreateCardRequest struct {
	Name       string         `json:"name"`
	CardNumber string         `json:"card_number"`
	ExpMonth   string         `json:"exp_month"`
	ExpYear    string         `json:"exp_year"`
	CVV        string         `json:"cvv"`
	IsDefault  bool           `json:"is_default"`
	Meta       map[string]any `json:"meta"`
}

// CardResponse is the HTTP response for a stored card. Card fields are
// ciphertext.
type CardResponse struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user"`
	Name              string         `json:"name"`
	CardNumber        string         `json:"card_number"`
	ExpMonth          string         `json:"exp_month"`
	ExpYear           string         `json:"exp_year"`
	CVV               string         `json:"cvv"`
	CardLastSix       string         `json:"card_last_six"`
	IsDefault         bool           `json:"is_default"`
	Alias             string         `json:"alias"`
	Meta              map[string]any `json:"meta"`
	Status            string         `json:"status"`
	LastPaymentDate   *time.Time     `json:"last_payment_date"`
	LastPaymentStatus *bool          `json:"last_payment_status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func toCardResponse(card *domain.Card) CardResponse {
	meta := card.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return CardResponse{
		ID:                card.ID,
		UserID:            card.UserID,
		Name:              card.Name,
		CardNumber:        card.Number,
		ExpMonth:          card.ExpMonth,
		ExpYear:           card.ExpYear,
		CVV:               card.CVV,
		CardLastSix:       card.LastSix,
		IsDefault:         card.IsDefault,
		Alias:             card.Alias,
		Meta:              meta,
		Status:            string(card.Status),
		LastPaymentDate:   card.LastPaymentDate,
		LastPaymentStatus: card.LastPaymentStatus,
		CreatedAt:         card.CreatedAt,
		UpdatedAt:         card.UpdatedAt,
	}
}

// CreateCard handles POST /v1/cards
func (h *CardHandler) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "", "invalid request body")
		return
	}

	card, err := h.cardService.CreateCard(c.Request.Context(), service.CreateCardRequest{
		UserID:    middleware.UserID(c),
		Name:      req.Name,
		Number:    req.CardNumber,
		ExpMonth:  req.ExpMonth,
		ExpYear:   req.ExpYear,
		CVV:       req.CVV,
		IsDefault: req.IsDefault,
		Meta:      req.Meta,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toCardResponse(card))
}

// ListCards handles GET /v1/cards
func (h *CardHandler) ListCards(c *gin.Context) {
	cards, err := h.cardService.ListCards(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		response = append(response, toCardResponse(card))
	}

	respondJSON(c, http.StatusOK, response)
}

// RemoveCard handles DELETE /v1/cards/:id
func (h *CardHandler) RemoveCard(c *gin.Context) {
	if err := h.cardService.RemoveCard(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
