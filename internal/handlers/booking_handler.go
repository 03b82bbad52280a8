package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rijanshrestha/eventnest/internal/bookings"
	"github.com/rijanshrestha/eventnest/internal/helpers"
	"github.com/rijanshrestha/eventnest/internal/models"
	"github.com/rijanshrestha/eventnest/internal/payments"
)

type BookingHandler struct {
	svc    bookings.BookingService
	logger *zap.Logger
}

func NewBookingHandler(svc bookings.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type BookingRequest struct {
	EventID       uuid.UUID `json:"event_id" binding:"required"`
	NumberOfSeats int       `json:"number_of_seats" binding:"required,min=1"`
	PaymentMethod string    `json:"payment_method"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return
	}

	gateway := req.PaymentMethod
	if gateway == "" {
		gateway = models.GatewayEsewa
	}

	resp, err := h.svc.Initiate(c.Request.Context(), userUUID, req.EventID, req.NumberOfSeats, gateway)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PaymentSuccess serves both gateways' success redirects. Which gateway is
// calling back is decided by the parameters present: Khalti sends pidx,
// eSewa sends oid/refId/signature.
func (h *BookingHandler) PaymentSuccess(c *gin.Context) {
	var cb payments.CallbackData

	if pidx := c.Query("pidx"); pidx != "" {
		cb = payments.CallbackData{
			Pidx:          pidx,
			OrderID:       c.Query("purchase_order_id"),
			Status:        c.Query("status"),
			TransactionID: c.Query("transaction_id"),
		}
	} else {
		cb = payments.CallbackData{
			OrderID:   c.Query("oid"),
			RefID:     c.Query("refId"),
			Signature: c.Query("signature"),
		}
		if cb.OrderID == "" || cb.RefID == "" || cb.Signature == "" {
			helpers.RespondWithError(c, http.StatusBadRequest, "Missing payment details.")
			return
		}
	}

	result, err := h.svc.HandleSuccessCallback(c.Request.Context(), &cb)
	if err != nil {
		var mismatch *payments.SignatureMismatchError
		switch {
		case errors.As(err, &mismatch):
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid payment signature")
			return
		case errors.Is(err, payments.ErrGatewayUnreachable):
			helpers.RespondWithError(c, http.StatusBadGateway,
				"Could not verify payment with the gateway. The payment may have been charged; it will be reconciled.")
			return
		default:
			h.respondServiceError(c, err)
			return
		}
	}

	// Khalti lands the user's browser here, so redirect it onward to the
	// frontend result page. eSewa's flow consumes JSON.
	if cb.Pidx != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}

	if result.Status != models.PaymentCompleted {
		c.JSON(http.StatusBadRequest, gin.H{
			"message":   "Payment failed",
			"bookingId": result.BookingID,
			"status":    result.RawStatus,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Payment successful",
		"bookingId":     result.BookingID,
		"transactionId": result.TransactionID,
		"qrCode":        result.QRCode,
		"redirectUrl":   result.RedirectURL,
	})
}

func (h *BookingHandler) PaymentFailure(c *gin.Context) {
	token := c.Query("pidx")
	if token == "" {
		token = c.Query("purchase_order_id")
	}
	if token == "" {
		token = c.Query("oid")
	}
	if token == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Missing payment details.")
		return
	}

	result, err := h.svc.HandleFailureCallback(c.Request.Context(), token)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	if c.Query("pidx") != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"message":   "Payment Failed",
		"bookingId": result.BookingID,
	})
}

func (h *BookingHandler) Details(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Missing booking token.")
		return
	}

	view, err := h.svc.BookingDetails(c.Request.Context(), token)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *BookingHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bookings.ErrInvalidInput), errors.Is(err, bookings.ErrUnknownGateway):
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, bookings.ErrEventNotFound),
		errors.Is(err, bookings.ErrUserNotFound),
		errors.Is(err, bookings.ErrBookingNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, bookings.ErrCapacityExceeded):
		helpers.RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, payments.ErrGatewayUnreachable):
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment gateway unreachable.")
	default:
		h.logger.Error("unexpected booking error", zap.Error(err))
		helpers.RespondWithError(c, http.StatusInternalServerError, "Something went wrong.")
	}
}
