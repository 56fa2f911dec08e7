package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillCardSubmission is the card data captured at payment initiation.
// It is persisted on the Payment row so the M-Pesa callback, which runs
// as a separate request, can still create the card after the money moves.
type SkillCardSubmission struct {
	Name          string `json:"name" binding:"required"`
	SkillCategory string `json:"skill_category" binding:"required"`
	Bio           string `json:"bio" binding:"required,max=500"`
	Location      string `json:"location" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Email         string `json:"email" binding:"omitempty,email"`
	ImageURL      string `json:"image_url"`
	UserID        string `json:"user_id" binding:"required"`
}

type Payment struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Amount            int            `gorm:"not null" json:"amount"`
	Currency          string         `gorm:"not null;default:'KES'" json:"currency"`
	Method            string         `gorm:"not null;default:'mpesa'" json:"method"`
	Status            PaymentStatus  `gorm:"not null;default:'pending'" json:"status"`
	PaymentReference  string         `gorm:"index" json:"payment_reference"`
	ResultDescription string         `json:"result_description,omitempty"`
	Submission        string         `gorm:"type:text" json:"-"`
	UserID            string         `gorm:"not null;index" json:"user_id"`
	SkillCardID       *uuid.UUID     `gorm:"type:uuid" json:"skill_card_id,omitempty"`
	SkillCard         *SkillCard     `gorm:"foreignKey:SkillCardID" json:"skill_card,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return
}
