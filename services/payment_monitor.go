package services

import (
	"log"
	"sync"
	"time"

	"github.com/washline/carwash-app/models"
	"gorm.io/gorm"
)

// PaymentMetrics keeps payment-related counters.
type PaymentMetrics struct {
	TotalTransactions  int64
	SuccessfulPayments int64
	FailedPayments     int64
	PendingPayments    int64
}

// PaymentMonitor retries Stripe reconciliation for jobs whose webhook was
// missed or whose status check failed.
type PaymentMonitor struct {
	db            *gorm.DB
	metrics       PaymentMetrics
	retryQueue    []uint
	retryInterval time.Duration
	mutex         sync.Mutex
}

func NewPaymentMonitor(db *gorm.DB) *PaymentMonitor {
	return &PaymentMonitor{
		db:            db,
		retryQueue:    make([]uint, 0),
		retryInterval: 5 * time.Minute,
	}
}

// Start launches the retry goroutine.
func (pm *PaymentMonitor) Start() {
	go pm.processRetryQueue()
	log.Println("Payment monitor started")
}

// AddToRetryQueue queues a job id for reconciliation.
func (pm *PaymentMonitor) AddToRetryQueue(jobID uint) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for _, id := range pm.retryQueue {
		if id == jobID {
			return
		}
	}

	pm.retryQueue = append(pm.retryQueue, jobID)
	log.Printf("Added job %d to payment retry queue", jobID)
}

func (pm *PaymentMonitor) processRetryQueue() {
	ticker := time.NewTicker(pm.retryInterval)
	defer ticker.Stop()

	for range ticker.C {
		pm.mutex.Lock()
		if len(pm.retryQueue) == 0 {
			pm.mutex.Unlock()
			continue
		}

		queue := make([]uint, len(pm.retryQueue))
		copy(queue, pm.retryQueue)
		pm.retryQueue = make([]uint, 0)
		pm.mutex.Unlock()

		log.Printf("Processing payment retry queue with %d jobs", len(queue))
		for _, jobID := range queue {
			pm.retryJob(jobID)
		}
	}
}

// retryJob re-checks a job's payment intent with Stripe and applies the
// outcome.
func (pm *PaymentMonitor) retryJob(jobID uint) {
	var job models.Job
	if err := pm.db.First(&job, jobID).Error; err != nil {
		log.Printf("Error finding job %d for payment retry: %v", jobID, err)
		return
	}

	if job.Status != JobStatusPendingPayment {
		log.Printf("Job %d no longer pending payment, no retry needed", jobID)
		return
	}
	if job.PaymentIntentID == "" {
		return
	}

	status, err := GetStripeService().CheckPaymentIntentStatus(job.PaymentIntentID)
	if err != nil {
		log.Printf("Error checking payment intent for job %d: %v", jobID, err)
		pm.AddToRetryQueue(jobID)
		return
	}

	jobSvc := NewJobService(pm.db)
	switch status {
	case JobStatusPaid:
		if _, err := jobSvc.MarkPaid(job.ID, job.PaymentIntentID); err != nil {
			log.Printf("Error marking job %d paid from retry: %v", jobID, err)
			pm.AddToRetryQueue(jobID)
			return
		}
	case JobStatusCancelled:
		if _, err := jobSvc.Cancel(job.ID); err != nil {
			log.Printf("Error cancelling job %d from retry: %v", jobID, err)
			return
		}
	}

	pm.updateMetrics(status)
	log.Printf("Reconciled job %d payment status to %s", jobID, status)
}

func (pm *PaymentMonitor) updateMetrics(status string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.metrics.TotalTransactions++

	switch status {
	case JobStatusPaid:
		pm.metrics.SuccessfulPayments++
	case JobStatusCancelled:
		pm.metrics.FailedPayments++
	case JobStatusPendingPayment:
		pm.metrics.PendingPayments++
	}
}

// GetMetrics returns a snapshot of the payment metrics.
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.metrics
}
