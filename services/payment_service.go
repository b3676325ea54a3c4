package services

import (
	"log"
	"time"

	"github.com/washline/carwash-app/models"
	"gorm.io/gorm"
)

// JobPaymentTimeout is how long a job may sit in pending_payment before it
// is cancelled automatically.
const JobPaymentTimeout = 30 * time.Minute

// PaymentService reconciles job payment state with Stripe and expires stale
// unpaid jobs.
type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

// paymentTimeoutChecker periodically sweeps unpaid jobs.
func (s *PaymentService) paymentTimeoutChecker() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.CheckExpiredJobs()
	}
}

// CheckExpiredJobs cancels jobs whose payment window has passed and
// reconciles jobs that have a payment intent with the current Stripe state.
func (s *PaymentService) CheckExpiredJobs() {
	var jobs []models.Job
	if err := s.db.Where("status = ?", JobStatusPendingPayment).Find(&jobs).Error; err != nil {
		log.Printf("Error checking expired jobs: %v", err)
		return
	}

	now := time.Now()
	jobSvc := NewJobService(s.db)

	for i := range jobs {
		job := &jobs[i]

		if now.Sub(job.CreatedAt) > JobPaymentTimeout {
			// Check the gateway one last time before dropping the booking.
			if job.PaymentIntentID != "" {
				status, err := GetStripeService().CheckPaymentIntentStatus(job.PaymentIntentID)
				if err != nil {
					log.Printf("Error checking intent for job %d: %v", job.ID, err)
					continue
				}
				if status == JobStatusPaid {
					if _, err := jobSvc.MarkPaid(job.ID, job.PaymentIntentID); err != nil {
						log.Printf("Error reconciling paid job %d: %v", job.ID, err)
					}
					continue
				}
			}

			if _, err := jobSvc.Cancel(job.ID); err != nil {
				log.Printf("Error cancelling expired job %d: %v", job.ID, err)
				continue
			}
			log.Printf("Job %d expired after %v without payment", job.ID, JobPaymentTimeout)
		}
	}
}

// StartTimeoutChecker starts the goroutine that expires unpaid jobs.
func (s *PaymentService) StartTimeoutChecker() {
	go s.paymentTimeoutChecker()
	log.Println("Payment timeout checker started")
}
