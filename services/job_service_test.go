package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/utils"
)

func setupJobDB(t *testing.T, name string) *gorm.DB {
	utils.InitLogger()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Company{},
		&models.Cleaner{},
		&models.Job{},
		&models.JobFinancials{},
		&models.ShiftSession{},
		&models.Transaction{},
		&models.Notification{},
		&models.PushSubscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// seedWorkflow creates a customer, a company on the offline package and an
// on-duty cleaner, plus one pending job with its frozen financials.
func seedWorkflow(t *testing.T, db *gorm.DB) (models.Customer, models.Company, models.Cleaner, models.Job) {
	custUser := models.User{Name: "Cara Customer", Email: "cara@example.com", Password: "x", Role: "customer"}
	compUser := models.User{Name: "Oskar Owner", Email: "oskar@example.com", Password: "x", Role: "company"}
	clnUser := models.User{Name: "Kim Cleaner", Email: "kim@example.com", Password: "x", Role: "cleaner"}
	for _, u := range []*models.User{&custUser, &compUser, &clnUser} {
		assert.NoError(t, db.Create(u).Error)
	}

	customer := models.Customer{UserID: custUser.ID}
	assert.NoError(t, db.Create(&customer).Error)

	company := models.Company{
		UserID: compUser.ID, Name: "Shine & Go",
		Latitude: 52.52, Longitude: 13.405, ServiceRadiusKm: 10,
		BasePrice: 25, FeePackage: FeePackageTwo, Balance: 0,
	}
	assert.NoError(t, db.Create(&company).Error)

	lat, lng := 52.52, 13.40
	now := time.Now()
	cleaner := models.Cleaner{
		UserID: clnUser.ID, CompanyID: company.ID,
		DutyStatus: models.DutyOn, LastLat: &lat, LastLng: &lng, LastSeenAt: &now,
	}
	assert.NoError(t, db.Create(&cleaner).Error)

	job := models.Job{
		CustomerID: customer.ID, CompanyID: company.ID,
		Address: "Main St 1", Latitude: 52.521, Longitude: 13.406,
		Status: JobStatusPendingPayment,
		Price:  25, Fee: 0, Tax: 5, Tip: 2, Total: 32,
	}
	assert.NoError(t, db.Create(&job).Error)

	fin := models.JobFinancials{
		JobID: job.ID, Gross: 25, PlatformFee: 0, VAT: 5,
		CompanyNet: 25, FeePackage: FeePackageTwo,
	}
	assert.NoError(t, db.Create(&fin).Error)

	return customer, company, cleaner, job
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{JobStatusPendingPayment, JobStatusPaid},
		{JobStatusPendingPayment, JobStatusCancelled},
		{JobStatusPaid, JobStatusAssigned},
		{JobStatusPaid, JobStatusCancelled},
		{JobStatusPaid, JobStatusRefunded},
		{JobStatusAssigned, JobStatusInProgress},
		{JobStatusAssigned, JobStatusRefunded},
		{JobStatusInProgress, JobStatusCompleted},
		{JobStatusCompleted, JobStatusRefunded},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	forbidden := []struct{ from, to string }{
		{JobStatusPendingPayment, JobStatusAssigned},
		{JobStatusPendingPayment, JobStatusCompleted},
		{JobStatusPaid, JobStatusInProgress},
		{JobStatusAssigned, JobStatusPaid},
		{JobStatusAssigned, JobStatusCancelled},
		{JobStatusInProgress, JobStatusCancelled},
		{JobStatusCompleted, JobStatusAssigned},
		{JobStatusCompleted, JobStatusInProgress},
		{JobStatusCancelled, JobStatusPaid},
		{JobStatusRefunded, JobStatusPaid},
		{JobStatusRefunded, JobStatusRefunded},
	}
	for _, tr := range forbidden {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s should be forbidden", tr.from, tr.to)
	}
}

func TestJobLifecycle(t *testing.T) {
	db := setupJobDB(t, "job_lifecycle")
	svc := NewJobService(db)

	customer, company, cleaner, job := seedWorkflow(t, db)

	// Pay (offline, zero-fee package).
	paid, err := svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	// The customer's payment transaction is recorded as a debit.
	var payTxn models.Transaction
	assert.NoError(t, db.Where("job_id = ? AND type = ?", job.ID, models.TxJobPayment).First(&payTxn).Error)
	assert.Equal(t, -32.0, payTxn.Amount)
	assert.Equal(t, customer.UserID, payTxn.UserID)

	// Open a shift so completion has something to count against.
	shift := models.ShiftSession{CleanerID: cleaner.ID, StartedAt: time.Now()}
	assert.NoError(t, db.Create(&shift).Error)

	// Assign.
	assigned, err := svc.Assign(job.ID, cleaner.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusAssigned, assigned.Status)
	assert.Equal(t, cleaner.ID, *assigned.CleanerID)

	// Start.
	started, err := svc.Start(job.ID, cleaner.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusInProgress, started.Status)

	// Complete credits the company with net plus tip.
	completed, err := svc.Complete(job.ID, cleaner.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, completed.Status)

	var gotCompany models.Company
	assert.NoError(t, db.First(&gotCompany, company.ID).Error)
	assert.Equal(t, 27.0, gotCompany.Balance) // 25 net + 2 tip

	var creditTxn models.Transaction
	assert.NoError(t, db.Where("job_id = ? AND type = ?", job.ID, models.TxCompanyCredit).First(&creditTxn).Error)
	assert.Equal(t, 27.0, creditTxn.Amount)
	assert.Equal(t, 27.0, creditTxn.BalanceAfter)

	var gotShift models.ShiftSession
	assert.NoError(t, db.First(&gotShift, shift.ID).Error)
	assert.Equal(t, 1, gotShift.JobsCompleted)

	// Rate folds into the cleaner's running average.
	rated, err := svc.Rate(job.ID, customer.ID, 4, "spotless")
	assert.NoError(t, err)
	assert.Equal(t, 4, *rated.Rating)

	var gotCleaner models.Cleaner
	assert.NoError(t, db.First(&gotCleaner, cleaner.ID).Error)
	assert.Equal(t, 4.0, gotCleaner.Rating)
	assert.Equal(t, int64(1), gotCleaner.RatingCount)

	// Rating twice is rejected.
	_, err = svc.Rate(job.ID, customer.ID, 5, "again")
	assert.Error(t, err)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	db := setupJobDB(t, "job_markpaid")
	svc := NewJobService(db)

	_, _, _, job := seedWorkflow(t, db)

	first, err := svc.MarkPaid(job.ID, "pi_test_123")
	assert.NoError(t, err)
	assert.Equal(t, JobStatusPaid, first.Status)

	// Stripe delivers webhooks at least once; a replay must not error or
	// double-book the payment.
	second, err := svc.MarkPaid(job.ID, "pi_test_123")
	assert.NoError(t, err)
	assert.Equal(t, JobStatusPaid, second.Status)

	var count int64
	db.Model(&models.Transaction{}).Where("job_id = ? AND type = ?", job.ID, models.TxJobPayment).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAssignGuards(t *testing.T) {
	db := setupJobDB(t, "job_assign_guards")
	svc := NewJobService(db)

	_, _, cleaner, job := seedWorkflow(t, db)

	// Cannot assign an unpaid job.
	_, err := svc.Assign(job.ID, cleaner.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)

	// Off-duty cleaner is rejected.
	assert.NoError(t, db.Model(&models.Cleaner{}).Where("id = ?", cleaner.ID).
		Update("duty_status", models.DutyOff).Error)
	_, err = svc.Assign(job.ID, cleaner.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not on duty")

	// Cleaner from another company is rejected.
	otherUser := models.User{Name: "Other", Email: "other@example.com", Password: "x", Role: "cleaner"}
	assert.NoError(t, db.Create(&otherUser).Error)
	stranger := models.Cleaner{UserID: otherUser.ID, CompanyID: 999, DutyStatus: models.DutyOn}
	assert.NoError(t, db.Create(&stranger).Error)
	_, err = svc.Assign(job.ID, stranger.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to company")
}

func TestStartRequiresAssignedCleaner(t *testing.T) {
	db := setupJobDB(t, "job_start_guard")
	svc := NewJobService(db)

	_, _, cleaner, job := seedWorkflow(t, db)

	_, err := svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)
	_, err = svc.Assign(job.ID, cleaner.ID)
	assert.NoError(t, err)

	// A different cleaner cannot start the job.
	_, err = svc.Start(job.ID, cleaner.ID+100)
	assert.Error(t, err)

	_, err = svc.Start(job.ID, cleaner.ID)
	assert.NoError(t, err)
}

func TestCancelBeforeAndAfterPayment(t *testing.T) {
	db := setupJobDB(t, "job_cancel")
	svc := NewJobService(db)

	_, _, _, job := seedWorkflow(t, db)

	// Pending jobs cancel directly.
	cancelled, err := svc.Cancel(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	// A cancelled job stays cancelled.
	_, err = svc.Cancel(job.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancelPaidJobRefunds(t *testing.T) {
	db := setupJobDB(t, "job_cancel_paid")
	svc := NewJobService(db)

	customer, _, _, job := seedWorkflow(t, db)

	_, err := svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)

	// Offline payments have no intent, so no Stripe call is involved.
	refunded, err := svc.Cancel(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)

	var refundTxn models.Transaction
	assert.NoError(t, db.Where("job_id = ? AND type = ?", job.ID, models.TxRefund).First(&refundTxn).Error)
	assert.Equal(t, 32.0, refundTxn.Amount)
	assert.Equal(t, customer.UserID, refundTxn.UserID)
}

func TestCancelAssignedJobRefunds(t *testing.T) {
	db := setupJobDB(t, "job_cancel_assigned")
	svc := NewJobService(db)

	customer, _, cleaner, job := seedWorkflow(t, db)

	_, err := svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)
	_, err = svc.Assign(job.ID, cleaner.ID)
	assert.NoError(t, err)

	// The customer already paid; cancelling after assignment must give the
	// money back, never silently keep the charge.
	refunded, err := svc.Cancel(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)

	var refundTxn models.Transaction
	assert.NoError(t, db.Where("job_id = ? AND type = ?", job.ID, models.TxRefund).First(&refundTxn).Error)
	assert.Equal(t, 32.0, refundTxn.Amount)
	assert.Equal(t, customer.UserID, refundTxn.UserID)
}

func TestRefundCompletedJobClawsBackBalance(t *testing.T) {
	db := setupJobDB(t, "job_refund_completed")
	svc := NewJobService(db)

	_, company, cleaner, job := seedWorkflow(t, db)

	_, err := svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)
	_, err = svc.Assign(job.ID, cleaner.ID)
	assert.NoError(t, err)
	_, err = svc.Start(job.ID, cleaner.ID)
	assert.NoError(t, err)
	_, err = svc.Complete(job.ID, cleaner.ID)
	assert.NoError(t, err)

	var before models.Company
	assert.NoError(t, db.First(&before, company.ID).Error)
	assert.Equal(t, 27.0, before.Balance)

	refunded, err := svc.Refund(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, JobStatusRefunded, refunded.Status)

	var after models.Company
	assert.NoError(t, db.First(&after, company.ID).Error)
	assert.Equal(t, 0.0, after.Balance)

	var txns []models.Transaction
	assert.NoError(t, db.Where("job_id = ? AND type = ?", job.ID, models.TxRefund).Find(&txns).Error)
	assert.Len(t, txns, 2) // customer refund plus company debit
}

func TestRateValidation(t *testing.T) {
	db := setupJobDB(t, "job_rate_validation")
	svc := NewJobService(db)

	customer, _, cleaner, job := seedWorkflow(t, db)

	// Only completed jobs can be rated.
	_, err := svc.Rate(job.ID, customer.ID, 5, "")
	assert.Error(t, err)

	_, err = svc.MarkPaidOffline(job.ID)
	assert.NoError(t, err)
	_, err = svc.Assign(job.ID, cleaner.ID)
	assert.NoError(t, err)
	_, err = svc.Start(job.ID, cleaner.ID)
	assert.NoError(t, err)
	_, err = svc.Complete(job.ID, cleaner.ID)
	assert.NoError(t, err)

	// Out-of-range ratings are rejected.
	_, err = svc.Rate(job.ID, customer.ID, 0, "")
	assert.Error(t, err)
	_, err = svc.Rate(job.ID, customer.ID, 6, "")
	assert.Error(t, err)

	// Someone else's job cannot be rated.
	_, err = svc.Rate(job.ID, customer.ID+100, 5, "")
	assert.Error(t, err)

	_, err = svc.Rate(job.ID, customer.ID, 5, "great")
	assert.NoError(t, err)
}
