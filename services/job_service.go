package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"gorm.io/gorm"
)

// Job statuses.
const (
	JobStatusPendingPayment = "pending_payment"
	JobStatusPaid           = "paid"
	JobStatusAssigned       = "assigned"
	JobStatusInProgress     = "in_progress"
	JobStatusCompleted      = "completed"
	JobStatusCancelled      = "cancelled"
	JobStatusRefunded       = "refunded"
)

// allowedTransitions is the job workflow. Anything not listed is illegal;
// in particular a completed job can never return to assigned.
var allowedTransitions = map[string][]string{
	JobStatusPendingPayment: {JobStatusPaid, JobStatusCancelled},
	JobStatusPaid:           {JobStatusAssigned, JobStatusCancelled, JobStatusRefunded},
	JobStatusAssigned:       {JobStatusInProgress, JobStatusRefunded},
	JobStatusInProgress:     {JobStatusCompleted},
	JobStatusCompleted:      {JobStatusRefunded},
}

// ErrIllegalTransition is returned for any move the workflow does not allow.
var ErrIllegalTransition = errors.New("illegal job status transition")

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobService owns every guarded status transition of the job workflow.
type JobService struct {
	db *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{db: db}
}

// transition moves a job to the target status inside tx, stamping the
// matching timestamp. Callers must have loaded the job from the same tx.
func (s *JobService) transition(tx *gorm.DB, job *models.Job, to string) error {
	if !CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, to)
	}

	now := time.Now()
	job.Status = to
	job.UpdatedAt = now

	switch to {
	case JobStatusPaid:
		job.PaidAt = &now
	case JobStatusAssigned:
		job.AssignedAt = &now
	case JobStatusInProgress:
		job.StartedAt = &now
	case JobStatusCompleted:
		job.CompletedAt = &now
	case JobStatusCancelled:
		job.CancelledAt = &now
	case JobStatusRefunded:
		job.RefundedAt = &now
	}

	return tx.Save(job).Error
}

// MarkPaid moves a job to paid after a successful Stripe payment and records
// the customer's payment transaction.
func (s *JobService) MarkPaid(jobID uint, paymentIntentID string) (*models.Job, error) {
	var job models.Job
	tx := s.db.Begin()

	if err := tx.Preload("Customer").First(&job, jobID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Webhooks can be delivered more than once.
	if job.Status == JobStatusPaid && job.PaymentIntentID == paymentIntentID {
		tx.Rollback()
		return &job, nil
	}

	job.PaymentIntentID = paymentIntentID
	if err := s.transition(tx, &job, JobStatusPaid); err != nil {
		tx.Rollback()
		return nil, err
	}

	txn := models.Transaction{
		UserID:      job.Customer.UserID,
		JobID:       &job.ID,
		Type:        models.TxJobPayment,
		Amount:      -job.Total,
		Description: fmt.Sprintf("Payment for %s", job.Reference()),
		CreatedAt:   time.Now(),
	}
	if err := tx.Create(&txn).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	realtime.BroadcastPaymentSuccess(job)
	realtime.BroadcastJobUpdate(job)
	NotifyUser(s.db, job.Customer.UserID, "Payment received",
		fmt.Sprintf("Your booking %s is confirmed.", job.Reference()))

	return &job, nil
}

// MarkPaidOffline marks a job paid without a payment intent. Only valid for
// companies on the zero-fee offline package.
func (s *JobService) MarkPaidOffline(jobID uint) (*models.Job, error) {
	var fin models.JobFinancials
	if err := s.db.Where("job_id = ?", jobID).First(&fin).Error; err != nil {
		return nil, err
	}
	if fin.FeePackage != FeePackageTwo {
		return nil, fmt.Errorf("offline payment only allowed for the %s package", FeePackageTwo)
	}
	return s.MarkPaid(jobID, "")
}

// Assign hands a paid job to a cleaner of the job's company. The cleaner
// must be on duty.
func (s *JobService) Assign(jobID, cleanerID uint) (*models.Job, error) {
	var job models.Job
	tx := s.db.Begin()

	if err := tx.Preload("Customer").First(&job, jobID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	var cleaner models.Cleaner
	if err := tx.Preload("User").First(&cleaner, cleanerID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if cleaner.CompanyID != job.CompanyID {
		tx.Rollback()
		return nil, fmt.Errorf("cleaner %d does not belong to company %d", cleanerID, job.CompanyID)
	}
	if cleaner.DutyStatus != models.DutyOn {
		tx.Rollback()
		return nil, fmt.Errorf("cleaner %d is not on duty", cleanerID)
	}

	job.CleanerID = &cleaner.ID
	if err := s.transition(tx, &job, JobStatusAssigned); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	realtime.BroadcastJobAssigned(job)
	realtime.BroadcastJobUpdate(job)
	NotifyUser(s.db, cleaner.UserID, "New job assigned",
		fmt.Sprintf("Job %s at %s is yours.", job.Reference(), job.Address))
	NotifyUser(s.db, job.Customer.UserID, "Cleaner on the way",
		fmt.Sprintf("%s will handle your booking %s.", cleaner.User.Name, job.Reference()))

	return &job, nil
}

// AutoAssign picks the nearest on-duty cleaner of the job's company.
func (s *JobService) AutoAssign(jobID uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.First(&job, jobID).Error; err != nil {
		return nil, err
	}

	cleaner, err := NearestOnDutyCleaner(s.db, job.CompanyID, job.Latitude, job.Longitude)
	if err != nil {
		return nil, fmt.Errorf("no on-duty cleaner available: %w", err)
	}

	return s.Assign(jobID, cleaner.ID)
}

// Start moves an assigned job to in_progress. Only the assigned cleaner may
// start it.
func (s *JobService) Start(jobID, cleanerID uint) (*models.Job, error) {
	var job models.Job
	tx := s.db.Begin()

	if err := tx.First(&job, jobID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if job.CleanerID == nil || *job.CleanerID != cleanerID {
		tx.Rollback()
		return nil, fmt.Errorf("job %d is not assigned to cleaner %d", jobID, cleanerID)
	}

	if err := s.transition(tx, &job, JobStatusInProgress); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	realtime.BroadcastJobUpdate(job)
	return &job, nil
}

// Complete finishes an in_progress job: the company is credited with its net
// amount, transactions are written and the cleaner's open shift gets the job
// counted.
func (s *JobService) Complete(jobID, cleanerID uint) (*models.Job, error) {
	var job models.Job
	tx := s.db.Begin()

	if err := tx.Preload("Customer").Preload("Company").First(&job, jobID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if job.CleanerID == nil || *job.CleanerID != cleanerID {
		tx.Rollback()
		return nil, fmt.Errorf("job %d is not assigned to cleaner %d", jobID, cleanerID)
	}

	if err := s.transition(tx, &job, JobStatusCompleted); err != nil {
		tx.Rollback()
		return nil, err
	}

	var fin models.JobFinancials
	if err := tx.Where("job_id = ?", job.ID).First(&fin).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	net := RoundMoney(fin.CompanyNet + job.Tip)
	company := job.Company
	company.Balance = RoundMoney(company.Balance + net)
	company.UpdatedAt = time.Now()
	if err := tx.Save(&company).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	txn := models.Transaction{
		UserID:       company.UserID,
		JobID:        &job.ID,
		Type:         models.TxCompanyCredit,
		Amount:       net,
		BalanceAfter: company.Balance,
		Description:  fmt.Sprintf("Earnings for %s", job.Reference()),
		CreatedAt:    time.Now(),
	}
	if err := tx.Create(&txn).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Count the job on the cleaner's open shift, if any.
	if err := tx.Model(&models.ShiftSession{}).
		Where("cleaner_id = ? AND ended_at IS NULL", cleanerID).
		UpdateColumn("jobs_completed", gorm.Expr("jobs_completed + 1")).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	realtime.BroadcastJobUpdate(job)
	NotifyUser(s.db, job.Customer.UserID, "Wash completed",
		fmt.Sprintf("Your booking %s is done. Rate your wash!", job.Reference()))

	return &job, nil
}

// Cancel aborts a job. The customer's money was captured from paid onwards,
// so paid and assigned jobs are refunded through Stripe and end up refunded;
// only unpaid jobs become cancelled.
func (s *JobService) Cancel(jobID uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.Preload("Customer").First(&job, jobID).Error; err != nil {
		return nil, err
	}

	switch job.Status {
	case JobStatusPendingPayment:
		tx := s.db.Begin()
		if err := s.transition(tx, &job, JobStatusCancelled); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		realtime.BroadcastJobUpdate(job)
		return &job, nil
	case JobStatusPaid, JobStatusAssigned:
		return s.Refund(jobID)
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, JobStatusCancelled)
	}
}

// Refund reverses a paid or completed job. The Stripe refund is issued for
// card payments; a completed job also claws the credit back from the company
// balance.
func (s *JobService) Refund(jobID uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.Preload("Customer").Preload("Company").First(&job, jobID).Error; err != nil {
		return nil, err
	}

	if !CanTransition(job.Status, JobStatusRefunded) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, JobStatusRefunded)
	}

	wasCompleted := job.Status == JobStatusCompleted

	if job.PaymentIntentID != "" {
		if err := GetStripeService().RefundPaymentIntent(job.PaymentIntentID); err != nil {
			return nil, fmt.Errorf("stripe refund failed: %w", err)
		}
	}

	tx := s.db.Begin()

	if err := s.transition(tx, &job, JobStatusRefunded); err != nil {
		tx.Rollback()
		return nil, err
	}

	refundTxn := models.Transaction{
		UserID:      job.Customer.UserID,
		JobID:       &job.ID,
		Type:        models.TxRefund,
		Amount:      job.Total,
		Description: fmt.Sprintf("Refund for %s", job.Reference()),
		CreatedAt:   time.Now(),
	}
	if err := tx.Create(&refundTxn).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if wasCompleted {
		var fin models.JobFinancials
		if err := tx.Where("job_id = ?", job.ID).First(&fin).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		net := RoundMoney(fin.CompanyNet + job.Tip)
		company := job.Company
		company.Balance = RoundMoney(company.Balance - net)
		company.UpdatedAt = time.Now()
		if err := tx.Save(&company).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		debit := models.Transaction{
			UserID:       company.UserID,
			JobID:        &job.ID,
			Type:         models.TxRefund,
			Amount:       -net,
			BalanceAfter: company.Balance,
			Description:  fmt.Sprintf("Earnings reversed for %s", job.Reference()),
			CreatedAt:    time.Now(),
		}
		if err := tx.Create(&debit).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	realtime.BroadcastJobUpdate(job)
	NotifyUser(s.db, job.Customer.UserID, "Booking refunded",
		fmt.Sprintf("Your booking %s has been refunded.", job.Reference()))

	return &job, nil
}

// Rate records the customer's rating on a completed job and folds it into
// the cleaner's running average.
func (s *JobService) Rate(jobID, customerID uint, rating int, review string) (*models.Job, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	var job models.Job
	tx := s.db.Begin()

	if err := tx.First(&job, jobID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if job.CustomerID != customerID {
		tx.Rollback()
		return nil, fmt.Errorf("job %d does not belong to customer %d", jobID, customerID)
	}
	if job.Status != JobStatusCompleted {
		tx.Rollback()
		return nil, fmt.Errorf("only completed jobs can be rated")
	}
	if job.Rating != nil {
		tx.Rollback()
		return nil, fmt.Errorf("job %d has already been rated", jobID)
	}

	job.Rating = &rating
	job.Review = review
	job.UpdatedAt = time.Now()
	if err := tx.Save(&job).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if job.CleanerID != nil {
		var cleaner models.Cleaner
		if err := tx.First(&cleaner, *job.CleanerID).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		total := cleaner.Rating*float64(cleaner.RatingCount) + float64(rating)
		cleaner.RatingCount++
		cleaner.Rating = RoundMoney(total / float64(cleaner.RatingCount))
		cleaner.UpdatedAt = time.Now()
		if err := tx.Save(&cleaner).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &job, nil
}
