package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Trescaul/afri-skill-showcase/internal/helpers"
	"github.com/Trescaul/afri-skill-showcase/internal/logging"
	"github.com/Trescaul/afri-skill-showcase/internal/middleware"
	"github.com/Trescaul/afri-skill-showcase/internal/models"
	"github.com/Trescaul/afri-skill-showcase/internal/monitoring"
	"github.com/Trescaul/afri-skill-showcase/internal/mpesa"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const verificationFeeDescription = "Skill Card Africa - Verification Fee"

type PaymentRequest struct {
	Phone         string                     `json:"phone" binding:"required"`
	Amount        int                        `json:"amount" binding:"required,min=1"`
	SkillCardData models.SkillCardSubmission `json:"skillCardData" binding:"required"`
}

// InitiatePayment creates a pending payment record, then asks Daraja to
// push an STK prompt to the customer's phone. The record is written
// before the gateway is contacted so no push can happen without a row
// to reconcile against.
func InitiatePayment(c *gin.Context) {
	var paymentReq PaymentRequest
	if err := c.ShouldBindJSON(&paymentReq); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	gateway := middleware.GetMpesaGateway(c)
	if gateway == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment gateway not found.")
		return
	}

	formattedPhone, err := helpers.FormatPhoneNumber(paymentReq.Phone)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid phone number.")
		return
	}

	paymentReq.SkillCardData.UserID = userID.(string)
	submissionJSON, err := json.Marshal(paymentReq.SkillCardData)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to encode skill card data.")
		return
	}

	payment := models.Payment{
		Amount:     paymentReq.Amount,
		Currency:   "KES",
		Method:     "mpesa",
		Status:     models.PaymentPending,
		Submission: string(submissionJSON),
		UserID:     userID.(string),
	}
	if err := gormDB.Create(&payment).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create payment record.")
		return
	}

	pushResp, err := gateway.STKPush(c.Request.Context(), mpesa.STKPushRequest{
		Phone:            formattedPhone,
		Amount:           paymentReq.Amount,
		AccountReference: fmt.Sprintf("SkillCard-%s", payment.ID),
		Description:      verificationFeeDescription,
	})
	if err != nil {
		logging.Error("stk push failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		if errors.Is(err, mpesa.ErrNotConfigured) {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Mpesa credentials not configured.")
			return
		}
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment error. Please try again.")
		return
	}

	if err := gormDB.Model(&payment).Update("payment_reference", pushResp.CheckoutRequestID).Error; err != nil {
		logging.Error("failed to store checkout request id",
			zap.String("payment_id", payment.ID.String()),
			zap.String("checkout_request_id", pushResp.CheckoutRequestID),
			zap.Error(err))
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update payment record.")
		return
	}

	monitoring.PaymentsInitiated.Inc()
	logging.Info("stk push initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("checkout_request_id", pushResp.CheckoutRequestID),
		zap.Int("amount", paymentReq.Amount))

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"checkoutRequestId": pushResp.CheckoutRequestID,
		"paymentId":         payment.ID,
	})
}

// MpesaCallback handles the asynchronous STK push result. Daraja only
// expects an acknowledgement, so lookup and transition failures are
// logged and swallowed. Redelivered callbacks for a payment that is
// already terminal are no-ops.
func MpesaCallback(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	gormDB := db.(*gorm.DB)

	var callback mpesa.Callback
	if err := c.ShouldBindJSON(&callback); err != nil {
		logging.Warn("malformed mpesa callback", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	stk := callback.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		// Must not match rows whose reference has not been stored yet.
		logging.Warn("callback without checkout request id")
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	var payment models.Payment
	if err := gormDB.Where("payment_reference = ?", stk.CheckoutRequestID).First(&payment).Error; err != nil {
		monitoring.CallbacksReceived.WithLabelValues("false").Inc()
		logging.Warn("callback for unknown payment", zap.String("checkout_request_id", stk.CheckoutRequestID))
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	monitoring.CallbacksReceived.WithLabelValues("true").Inc()

	if callback.Success() {
		if err := completePayment(gormDB, &payment); err != nil {
			logging.Error("failed to complete payment",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err))
		}
	} else {
		if err := failPayment(gormDB, &payment, stk.ResultDesc); err != nil {
			logging.Error("failed to mark payment failed",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// completePayment transitions pending -> completed and materializes the
// skill card from the submission stored at initiation, all in one
// transaction. The guarded update makes redelivery a no-op: a payment
// already terminal affects zero rows, so no second card is ever created.
func completePayment(gormDB *gorm.DB, payment *models.Payment) error {
	return gormDB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Update("status", models.PaymentCompleted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			logging.Info("duplicate callback ignored", zap.String("payment_id", payment.ID.String()))
			return nil
		}

		var submission models.SkillCardSubmission
		if err := json.Unmarshal([]byte(payment.Submission), &submission); err != nil {
			return fmt.Errorf("decode stored submission: %w", err)
		}

		card := models.SkillCard{
			Name:          submission.Name,
			SkillCategory: submission.SkillCategory,
			Bio:           submission.Bio,
			Location:      submission.Location,
			Phone:         submission.Phone,
			Email:         submission.Email,
			ImageURL:      submission.ImageURL,
			Verified:      true,
			Rating:        5.0,
			UserID:        submission.UserID,
		}
		if err := tx.Create(&card).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Payment{}).
			Where("id = ?", payment.ID).
			Update("skill_card_id", card.ID).Error; err != nil {
			return err
		}

		monitoring.PaymentsCompleted.Inc()
		monitoring.CardsCreated.Inc()
		logging.Info("payment completed, skill card created",
			zap.String("payment_id", payment.ID.String()),
			zap.String("skill_card_id", card.ID.String()))
		return nil
	})
}

func failPayment(gormDB *gorm.DB, payment *models.Payment, resultDesc string) error {
	result := gormDB.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":             models.PaymentFailed,
			"result_description": resultDesc,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		logging.Info("duplicate callback ignored", zap.String("payment_id", payment.ID.String()))
		return nil
	}

	monitoring.PaymentsFailed.Inc()
	logging.Info("payment failed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("result_desc", resultDesc))
	return nil
}

// CheckPaymentStatus is the endpoint the client polls while it waits
// for the callback to land.
func CheckPaymentStatus(c *gin.Context) {
	paymentIDStr := c.Query("paymentId")
	if paymentIDStr == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Payment ID is required.")
		return
	}

	paymentID, err := uuid.Parse(paymentIDStr)
	if err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Payment not found.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var payment models.Payment
	if err := gormDB.Preload("SkillCard").First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Payment not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving payment.")
		return
	}

	skillCardVerified := false
	if payment.SkillCard != nil {
		skillCardVerified = payment.SkillCard.Verified
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentId":         payment.ID,
		"status":            payment.Status,
		"paymentReference":  payment.PaymentReference,
		"skillCardId":       payment.SkillCardID,
		"skillCardCreated":  payment.SkillCardID != nil,
		"skillCardVerified": skillCardVerified,
	})
}
