package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is what a user may act as when booking.
type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

// User is the minimal account record the scheduler needs for role checks.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:256;uniqueIndex" json:"email"`
	Role      Role      `gorm:"size:16;not null;index" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was supplied.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// Trainer holds per-trainer scheduling settings. Its ID is the trainer's user ID.
type Trainer struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Timezone  string    `gorm:"size:64" json:"timezone"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Availability   []Availability  `gorm:"foreignKey:TrainerID;constraint:OnDelete:CASCADE" json:"-"`
	BlockedTimes   []BlockedTime   `gorm:"foreignKey:TrainerID;constraint:OnDelete:CASCADE" json:"-"`
	CapacityPolicy *CapacityPolicy `gorm:"foreignKey:TrainerID;constraint:OnDelete:CASCADE" json:"-"`
	BookingPolicy  *BookingPolicy  `gorm:"foreignKey:TrainerID;constraint:OnDelete:CASCADE" json:"-"`
}
