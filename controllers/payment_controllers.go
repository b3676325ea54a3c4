package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type PaymentController struct {
	DB      *gorm.DB
	Jobs    *services.JobService
	Monitor *services.PaymentMonitor
}

func NewPaymentController(db *gorm.DB, monitor *services.PaymentMonitor) *PaymentController {
	return &PaymentController{
		DB:      db,
		Jobs:    services.NewJobService(db),
		Monitor: monitor,
	}
}

// CreatePaymentIntent creates the Stripe payment intent for a job and
// returns the client secret for Stripe Elements.
func (pc *PaymentController) CreatePaymentIntent(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var body struct {
		JobID uint `json:"job_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var job models.Job
	if err := pc.DB.Preload("Customer").First(&job, body.JobID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, fmt.Errorf("job not found"))
		return
	}

	if job.Customer.UserID != userID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	if job.Status != services.JobStatusPendingPayment {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("job is not awaiting payment"))
		return
	}

	ss := services.GetStripeService()
	if err := ss.ValidateConfig(); err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, err)
		return
	}

	clientSecret, intentID, err := ss.CreatePaymentIntent(&job)
	if err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	job.PaymentIntentID = intentID
	if err := pc.DB.Save(&job).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastPaymentPending(job)

	utils.RespondJSON(c, http.StatusCreated, "Payment intent created", gin.H{
		"client_secret":   clientSecret,
		"publishable_key": ss.PublishableKey(),
		"amount":          services.MinorUnits(job.Total),
	})
}

// StripeWebhook handles payment_intent events. The signature is verified
// against STRIPE_WEBHOOK_SECRET.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	event, err := services.GetStripeService().ConstructWebhookEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("webhook signature verification failed"))
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}

		jobID, err := jobIDFromIntent(&intent)
		if err != nil {
			utils.ErrorLogger.Printf("Webhook %s without job id: %v", event.Type, err)
			utils.RespondJSON(c, http.StatusOK, "Ignored", nil)
			return
		}

		if event.Type == "payment_intent.succeeded" {
			if _, err := pc.Jobs.MarkPaid(jobID, intent.ID); err != nil {
				utils.ErrorLogger.Printf("Error marking job %d paid from webhook: %v", jobID, err)
				pc.Monitor.AddToRetryQueue(jobID)
			}
		} else {
			utils.InfoLogger.Printf("Payment failed for job %d, queued for reconciliation", jobID)
			pc.Monitor.AddToRetryQueue(jobID)
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Webhook processed", nil)
}

// CheckJobPaymentStatus reconciles a job with Stripe on demand. Used by the
// client when the webhook is slow.
func (pc *PaymentController) CheckJobPaymentStatus(c *gin.Context) {
	jobID, _ := strconv.Atoi(c.Param("job_id"))

	var job models.Job
	if err := pc.DB.First(&job, jobID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if job.Status != services.JobStatusPendingPayment || job.PaymentIntentID == "" {
		utils.RespondJSON(c, http.StatusOK, "Payment status", gin.H{"status": job.Status})
		return
	}

	status, err := services.GetStripeService().CheckPaymentIntentStatus(job.PaymentIntentID)
	if err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	if status == services.JobStatusPaid {
		updated, err := pc.Jobs.MarkPaid(job.ID, job.PaymentIntentID)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		job = *updated
	}

	utils.RespondJSON(c, http.StatusOK, "Payment status", gin.H{"status": job.Status})
}

// GetStripeConfig exposes the publishable key for the booking page.
func (pc *PaymentController) GetStripeConfig(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Stripe config", gin.H{
		"publishable_key": services.GetStripeService().PublishableKey(),
	})
}

// GetMetrics returns payment reconciliation counters. Admin only.
func (pc *PaymentController) GetMetrics(c *gin.Context) {
	roleInterface, _ := c.Get("role")
	if roleInterface != "admin" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment metrics", pc.Monitor.GetMetrics())
}

func jobIDFromIntent(intent *stripe.PaymentIntent) (uint, error) {
	raw, ok := intent.Metadata["job_id"]
	if !ok {
		return 0, errors.New("job_id metadata missing")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid job_id metadata: %w", err)
	}
	return uint(id), nil
}
