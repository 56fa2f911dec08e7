package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SkillCard struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	SkillCategory string         `gorm:"not null;index" json:"skill_category"`
	Bio           string         `gorm:"type:text;not null" json:"bio"`
	Location      string         `gorm:"not null;index" json:"location"`
	Phone         string         `gorm:"not null" json:"phone"`
	Email         string         `json:"email"`
	ImageURL      string         `json:"image_url"`
	Verified      bool           `gorm:"not null;default:false" json:"verified"`
	Rating        float64        `gorm:"not null;default:5.0" json:"rating"`
	UserID        string         `gorm:"not null;index" json:"user_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (card *SkillCard) BeforeCreate(tx *gorm.DB) (err error) {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	return
}
