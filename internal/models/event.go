package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Event struct {
	gorm.Model
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Name        string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Location    string    `gorm:"not null"`
	Date        time.Time `gorm:"not null"`
	Price       int       `gorm:"not null"`
	TotalSlots  int       `gorm:"not null"`
	UserID      uuid.UUID
	User        User
	CategoryID  uuid.UUID
	Category    Category
	Attendees   []Attendance `gorm:"foreignKey:EventID"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}

// Attendance is one seat-holder of an event. The composite unique index is
// what makes the capacity commit idempotent: a second insert for the same
// (event, user) pair is a conflict, never a duplicate row.
type Attendance struct {
	EventID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_attendee"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_attendee"`
	CreatedAt time.Time
}

func (Attendance) TableName() string {
	return "event_attendees"
}
