package bookings

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rijanshrestha/eventnest/internal/models"
	"github.com/rijanshrestha/eventnest/internal/payments"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput     = errors.New("invalid booking input")
	ErrEventNotFound    = errors.New("event not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrCapacityExceeded = errors.New("not enough seats remaining")
	ErrUnknownGateway   = errors.New("unsupported payment gateway")
)

const verifyTimeout = 8 * time.Second

type InitiationResponse struct {
	BookingID  uuid.UUID         `json:"bookingId"`
	PaymentURL string            `json:"paymentUrl"`
	Params     map[string]string `json:"params,omitempty"`
	Signature  string            `json:"signature,omitempty"`
}

type CallbackResult struct {
	BookingID     uuid.UUID `json:"bookingId"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transactionId,omitempty"`
	QRCode        string    `json:"qrCode,omitempty"`
	RawStatus     string    `json:"rawStatus,omitempty"`
	RedirectURL   string    `json:"redirectUrl,omitempty"`
	Duplicate     bool      `json:"-"`
}

type BookingView struct {
	BookingID      uuid.UUID `json:"bookingId"`
	EventName      string    `json:"eventName"`
	NumberOfSeats  int       `json:"numberOfSeats"`
	TotalAmount    int       `json:"totalAmount"`
	UserName       string    `json:"userName"`
	UserEmail      string    `json:"userEmail"`
	PaymentGateway string    `json:"paymentGateway"`
	PaymentStatus  string    `json:"paymentStatus"`
	TransactionID  string    `json:"transactionId,omitempty"`
}

type BookingService interface {
	Initiate(ctx context.Context, userID, eventID uuid.UUID, seats int, gateway string) (*InitiationResponse, error)
	HandleSuccessCallback(ctx context.Context, cb *payments.CallbackData) (*CallbackResult, error)
	HandleFailureCallback(ctx context.Context, token string) (*CallbackResult, error)
	BookingDetails(ctx context.Context, token string) (*BookingView, error)
}

type bookingService struct {
	bookings    BookingRepository
	events      EventRepository
	users       UserRepository
	capacity    CapacityCommitter
	gateways    map[string]payments.Gateway
	frontendURL string
	logger      *zap.Logger
}

func NewBookingService(
	bookings BookingRepository,
	events EventRepository,
	users UserRepository,
	capacity CapacityCommitter,
	gateways map[string]payments.Gateway,
	frontendURL string,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		bookings:    bookings,
		events:      events,
		users:       users,
		capacity:    capacity,
		gateways:    gateways,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// Initiate creates the pending ledger entry and hands back the redirect
// target for the chosen gateway. The capacity check runs under the event
// row lock so it cannot race a concurrent commit for the same event.
func (s *bookingService) Initiate(ctx context.Context, userID, eventID uuid.UUID, seats int, gateway string) (*InitiationResponse, error) {
	if seats < 1 {
		return nil, ErrInvalidInput
	}

	gw, ok := s.gateways[gateway]
	if !ok {
		return nil, ErrUnknownGateway
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	booking := &models.Booking{
		UserID:         user.ID,
		EventID:        eventID,
		NumberOfSeats:  seats,
		PaymentGateway: gw.Name(),
		PaymentStatus:  models.PaymentPending,
		OrderID:        uuid.New().String(),
	}

	var eventName string
	err = s.events.InTransaction(ctx, func(tx *gorm.DB) error {
		event, err := s.events.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			return ErrEventNotFound
		}
		if event.Price <= 0 {
			return ErrInvalidInput
		}

		attendees, err := s.events.CountAttendees(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if int64(event.TotalSlots)-attendees < int64(seats) {
			return ErrCapacityExceeded
		}

		// Frozen here; later price edits never change what was owed.
		booking.TotalAmount = event.Price * seats
		eventName = event.Name
		return s.bookings.Create(ctx, tx, booking)
	})
	if err != nil {
		return nil, err
	}

	result, err := gw.BuildInitiationRequest(ctx, &payments.InitiationInput{
		OrderID:   booking.OrderID,
		EventName: eventName,
		Amount:    booking.TotalAmount,
	})
	if err != nil {
		if _, markErr := s.bookings.MarkFailed(ctx, booking.ID); markErr != nil {
			s.logger.Error("failed to mark booking failed after gateway error",
				zap.String("booking_id", booking.ID.String()), zap.Error(markErr))
		}
		return nil, err
	}

	details, err := json.Marshal(result.Details)
	if err != nil {
		return nil, err
	}
	booking.Pidx = result.Pidx
	booking.PaymentDetails = string(details)
	if err := s.bookings.SaveDetails(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info("booking initiated",
		zap.String("booking_id", booking.ID.String()),
		zap.String("order_id", booking.OrderID),
		zap.String("gateway", gw.Name()),
		zap.Int("seats", seats),
		zap.Int("total_amount", booking.TotalAmount),
	)

	return &InitiationResponse{
		BookingID:  booking.ID,
		PaymentURL: result.PaymentURL,
		Params:     result.Params,
		Signature:  result.Signature,
	}, nil
}

// HandleSuccessCallback is the single entry point for gateway success
// redirects and retries of them. It is idempotent: a booking already in a
// terminal state short-circuits to its stored result without touching
// capacity again.
func (s *bookingService) HandleSuccessCallback(ctx context.Context, cb *payments.CallbackData) (*CallbackResult, error) {
	token := cb.Pidx
	if token == "" {
		token = cb.OrderID
	}

	booking, err := s.bookings.FindByToken(ctx, token)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	if booking.Terminal() {
		return s.storedResult(booking, true), nil
	}

	gw, ok := s.gateways[booking.PaymentGateway]
	if !ok {
		return nil, ErrUnknownGateway
	}

	var stored payments.PaymentDetails
	if booking.PaymentDetails != "" {
		if err := json.Unmarshal([]byte(booking.PaymentDetails), &stored); err != nil {
			return nil, err
		}
	}

	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	outcome, err := gw.Verify(verifyCtx, cb, &stored)
	if err != nil {
		var mismatch *payments.SignatureMismatchError
		if errors.As(err, &mismatch) {
			s.logger.Warn("payment signature mismatch",
				zap.String("booking_id", booking.ID.String()),
				zap.String("order_id", booking.OrderID),
				zap.String("expected", mismatch.Expected),
				zap.String("received", mismatch.Received),
			)
			return s.failBooking(ctx, booking, "SIGNATURE_MISMATCH"), err
		}

		// Transport failure: the payment may have settled on the gateway's
		// side. Fail defensively and let the caller surface the ambiguity.
		s.logger.Error("gateway verification unreachable",
			zap.String("booking_id", booking.ID.String()),
			zap.String("gateway", booking.PaymentGateway),
			zap.Error(err),
		)
		return s.failBooking(ctx, booking, "UNREACHABLE"), err
	}

	if !outcome.OK {
		s.logger.Info("gateway reported non-success status",
			zap.String("booking_id", booking.ID.String()),
			zap.String("status", outcome.RawStatus),
		)
		return s.failBooking(ctx, booking, outcome.RawStatus), nil
	}

	qrCode, err := s.generateQRCode(booking, outcome.TransactionID)
	if err != nil {
		return nil, err
	}

	transitioned, err := s.bookings.MarkCompleted(ctx, booking.ID, outcome.TransactionID, qrCode)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Lost the race against a concurrent delivery of this callback.
		current, err := s.bookings.FindByID(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		return s.storedResult(current, true), nil
	}

	// Capacity is applied after the terminal write; Commit is idempotent,
	// so a crash in between is recovered by re-running it from the stored
	// completed booking.
	if err := s.capacity.Commit(ctx, booking.EventID, booking.UserID); err != nil {
		s.logger.Error("capacity commit failed for completed booking",
			zap.String("booking_id", booking.ID.String()),
			zap.String("event_id", booking.EventID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("booking completed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("transaction_id", outcome.TransactionID),
	)

	return &CallbackResult{
		BookingID:     booking.ID,
		Status:        models.PaymentCompleted,
		TransactionID: outcome.TransactionID,
		QRCode:        qrCode,
		RawStatus:     outcome.RawStatus,
		RedirectURL:   fmt.Sprintf("%s/booking/success/%s", s.frontendURL, booking.ID),
	}, nil
}

func (s *bookingService) HandleFailureCallback(ctx context.Context, token string) (*CallbackResult, error) {
	booking, err := s.bookings.FindByToken(ctx, token)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	if booking.Terminal() {
		return s.storedResult(booking, true), nil
	}

	return s.failBooking(ctx, booking, "CANCELED"), nil
}

func (s *bookingService) BookingDetails(ctx context.Context, token string) (*BookingView, error) {
	booking, err := s.bookings.FindByTokenPreloaded(ctx, token)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	return &BookingView{
		BookingID:      booking.ID,
		EventName:      booking.Event.Name,
		NumberOfSeats:  booking.NumberOfSeats,
		TotalAmount:    booking.TotalAmount,
		UserName:       booking.User.Name,
		UserEmail:      booking.User.Email,
		PaymentGateway: booking.PaymentGateway,
		PaymentStatus:  booking.PaymentStatus,
		TransactionID:  booking.TransactionID,
	}, nil
}

func (s *bookingService) failBooking(ctx context.Context, booking *models.Booking, rawStatus string) *CallbackResult {
	if _, err := s.bookings.MarkFailed(ctx, booking.ID); err != nil {
		s.logger.Error("failed to mark booking failed",
			zap.String("booking_id", booking.ID.String()), zap.Error(err))
	}
	return &CallbackResult{
		BookingID:   booking.ID,
		Status:      models.PaymentFailed,
		RawStatus:   rawStatus,
		RedirectURL: fmt.Sprintf("%s/booking/failure/%s?status=%s", s.frontendURL, booking.ID, rawStatus),
	}
}

func (s *bookingService) storedResult(booking *models.Booking, duplicate bool) *CallbackResult {
	result := &CallbackResult{
		BookingID:     booking.ID,
		Status:        booking.PaymentStatus,
		TransactionID: booking.TransactionID,
		QRCode:        booking.QRCode,
		Duplicate:     duplicate,
	}
	if booking.PaymentStatus == models.PaymentCompleted {
		result.RedirectURL = fmt.Sprintf("%s/booking/success/%s", s.frontendURL, booking.ID)
	} else {
		result.RedirectURL = fmt.Sprintf("%s/booking/failure/%s", s.frontendURL, booking.ID)
	}
	return result
}

func (s *bookingService) generateQRCode(booking *models.Booking, transactionID string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"bookingId":     booking.ID,
		"eventId":       booking.EventID,
		"seats":         booking.NumberOfSeats,
		"transactionId": transactionID,
	})
	if err != nil {
		return "", err
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
