package bookings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CapacityCommitter is the only code path allowed to append to an event's
// attendee set, and only on behalf of a completed booking.
type CapacityCommitter interface {
	Commit(ctx context.Context, eventID, userID uuid.UUID) error
}

type capacityUpdater struct {
	events EventRepository
	logger *zap.Logger
}

func NewCapacityUpdater(events EventRepository, logger *zap.Logger) CapacityCommitter {
	return &capacityUpdater{events: events, logger: logger}
}

// Commit idempotently ensures userID is an attendee of the event. Calling
// it twice for the same pair adds exactly one row. The event row lock keeps
// the seat count and the insert from racing concurrent initiations or
// commits.
func (u *capacityUpdater) Commit(ctx context.Context, eventID, userID uuid.UUID) error {
	return u.events.InTransaction(ctx, func(tx *gorm.DB) error {
		event, err := u.events.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			return ErrEventNotFound
		}

		present, err := u.events.HasAttendee(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if present {
			return nil
		}

		count, err := u.events.CountAttendees(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if count >= int64(event.TotalSlots) {
			u.logger.Error("event full at capacity commit, booking needs manual reconciliation",
				zap.String("event_id", eventID.String()),
				zap.String("user_id", userID.String()),
				zap.Int64("attendees", count),
				zap.Int("total_slots", event.TotalSlots),
			)
			return ErrCapacityExceeded
		}

		return u.events.AddAttendee(ctx, tx, eventID, userID)
	})
}
