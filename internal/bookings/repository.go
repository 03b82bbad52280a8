package bookings

import (
	"context"

	"github.com/google/uuid"
	"github.com/rijanshrestha/eventnest/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	// FindByIDForUpdate locks the event row, serializing concurrent
	// capacity checks and commits against the same event.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error)
	CountAttendees(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error)
	HasAttendee(ctx context.Context, tx *gorm.DB, eventID, userID uuid.UUID) (bool, error)
	AddAttendee(ctx context.Context, tx *gorm.DB, eventID, userID uuid.UUID) error
	InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type BookingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// FindByToken matches either our order id or Khalti's pidx.
	FindByToken(ctx context.Context, token string) (*models.Booking, error)
	FindByTokenPreloaded(ctx context.Context, token string) (*models.Booking, error)
	SaveDetails(ctx context.Context, booking *models.Booking) error
	// MarkCompleted transitions pending -> completed atomically. Returns
	// false when the booking was no longer pending, which is how a losing
	// concurrent callback discovers it must take the duplicate branch.
	MarkCompleted(ctx context.Context, id uuid.UUID, transactionID, qrCode string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) CountAttendees(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Attendance{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count, err
}

func (r *eventRepository) HasAttendee(ctx context.Context, tx *gorm.DB, eventID, userID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Attendance{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *eventRepository) AddAttendee(ctx context.Context, tx *gorm.DB, eventID, userID uuid.UUID) error {
	attendance := models.Attendance{EventID: eventID, UserID: userID}
	// The unique index makes a concurrent duplicate a no-op rather than an
	// error or a double count.
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&attendance).Error
}

func (r *eventRepository) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return tx.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByToken(ctx context.Context, token string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Where("order_id = ? OR pidx = ?", token, token).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByTokenPreloaded(ctx context.Context, token string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("Event").
		Preload("User").
		Where("order_id = ? OR pidx = ?", token, token).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) SaveDetails(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]interface{}{
			"pidx":            booking.Pidx,
			"payment_details": booking.PaymentDetails,
		}).Error
}

func (r *bookingRepository) MarkCompleted(ctx context.Context, id uuid.UUID, transactionID, qrCode string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentCompleted,
			"transaction_id": transactionID,
			"qr_code":        qrCode,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *bookingRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentPending).
		Update("payment_status", models.PaymentFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
