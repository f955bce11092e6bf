package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wellness-kit/order-intake/internal/api/response"
	"github.com/wellness-kit/order-intake/internal/orders"
)

// OrderHandler serves single-order creation.
type OrderHandler struct {
	svc *orders.Service
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(svc *orders.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// formValue accepts a JSON string or a bare number, keeping the text as typed.
type formValue string

func (f *formValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = formValue(s)
		return nil
	}
	*f = formValue(strings.TrimSpace(string(b)))
	return nil
}

type createOrderRequest struct {
	Latitude  formValue `json:"latitude"`
	Longitude formValue `json:"longitude"`
	Subtotal  formValue `json:"subtotal"`
	Address   string    `json:"address"`
}

// HandleCreate handles POST /api/v1/orders.
func (h *OrderHandler) HandleCreate(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	order, err := h.svc.Create(c.Request.Context(), orders.Draft{
		Latitude:  string(req.Latitude),
		Longitude: string(req.Longitude),
		Subtotal:  string(req.Subtotal),
		Address:   req.Address,
	})
	if err != nil {
		if orders.IsRejection(err) {
			response.Unprocessable(c, "ORDER_REJECTED", err.Error(), nil)
			return
		}
		storeFailed(c, err, "failed to store order")
		return
	}

	response.Success(c, http.StatusCreated, order)
}
