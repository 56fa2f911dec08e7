package handlers

import (
	"net/http"
	"os"

	"github.com/Trescaul/afri-skill-showcase/internal/helpers"
	"github.com/Trescaul/afri-skill-showcase/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

// ListCards is the public gallery. Filters are optional: category and
// location match exactly, q searches names and bios.
func ListCards(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Model(&models.SkillCard{}).Where("verified = ?", true)

	if category := c.Query("category"); category != "" {
		query = query.Where("skill_category = ?", category)
	}
	if location := c.Query("location"); location != "" {
		query = query.Where("location = ?", location)
	}
	if q := c.Query("q"); q != "" {
		pattern := "%" + q + "%"
		query = query.Where("name LIKE ? OR bio LIKE ?", pattern, pattern)
	}

	var cards []models.SkillCard
	if err := query.Order("rating DESC, created_at DESC").Find(&cards).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving skill cards.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

func GetCard(c *gin.Context) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid card ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var card models.SkillCard
	if err := gormDB.First(&card, cardID).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Skill card not found.")
		return
	}

	c.JSON(http.StatusOK, card)
}

// GenerateCardQR returns a PNG QR code for sharing a card. The payload
// carries an HMAC signature so scanned codes can be checked against
// forgery by the verify endpoint.
func GenerateCardQR(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not authenticated.")
		return
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid card ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var card models.SkillCard
	if err := gormDB.First(&card, cardID).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Skill card not found.")
		return
	}

	if card.UserID != userID {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to generate a QR code for this card.")
		return
	}

	qrData := helpers.EncodeCardQRData(card.ID, os.Getenv("CARD_SIGNING_SECRET"))

	qrImage, err := qrcode.Encode(qrData, qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}

// VerifyCard checks a scanned QR payload: signature first, then that
// the card still exists and is verified.
func VerifyCard(c *gin.Context) {
	var verifyRequest struct {
		QRData string `json:"qr_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&verifyRequest); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	if !helpers.ValidateCardQRData(verifyRequest.QRData, os.Getenv("CARD_SIGNING_SECRET")) {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid QR code signature.")
		return
	}

	cardID, err := helpers.ExtractCardIDFromQRData(verifyRequest.QRData)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid QR code format.")
		return
	}

	var card models.SkillCard
	if err := gormDB.First(&card, cardID).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Skill card not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"genuine":  true,
		"verified": card.Verified,
		"card": gin.H{
			"id":             card.ID,
			"name":           card.Name,
			"skill_category": card.SkillCategory,
			"location":       card.Location,
		},
	})
}

func ListCategories(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var categories []models.Category
	if err := gormDB.Order("name").Find(&categories).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving categories.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// UploadProfileImage stores a profile photo and returns its path, which
// the client sends back as image_url in the skill card submission.
func UploadProfileImage(c *gin.Context) {
	if _, exists := c.Get("user_id"); !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not authenticated.")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Image file is required.")
		return
	}

	path, err := helpers.UploadFile(c, fileHeader, "profiles")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_url": path})
}
