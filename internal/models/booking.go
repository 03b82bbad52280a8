package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GatewayEsewa  = "eSewa"
	GatewayKhalti = "Khalti"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Booking is the payment ledger: one row per reservation attempt. A gateway
// retry never creates a second row, it re-enters the same one through the
// idempotent callback path. Once PaymentStatus is completed or failed the
// record is immutable.
type Booking struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index"`
	User           User
	EventID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Event          Event
	NumberOfSeats  int    `gorm:"not null"`
	TotalAmount    int    `gorm:"not null"`
	PaymentGateway string `gorm:"not null"`
	PaymentStatus  string `gorm:"not null;default:'pending'"`
	// OrderID is our correlation token: eSewa's pid, Khalti's
	// purchase_order_id. Pidx is the token Khalti issues back at initiation.
	OrderID        string `gorm:"not null;uniqueIndex"`
	Pidx           string `gorm:"index"`
	PaymentDetails string `gorm:"type:jsonb"`
	TransactionID  string
	QRCode         string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (booking *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	return
}

func (booking *Booking) Terminal() bool {
	return booking.PaymentStatus != PaymentPending
}
