package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type JobController struct {
	DB   *gorm.DB
	Jobs *services.JobService
}

func NewJobController(db *gorm.DB) *JobController {
	return &JobController{DB: db, Jobs: services.NewJobService(db)}
}

// vatRate reads the configured VAT rate, defaulting to 20%.
func vatRate() float64 {
	if v := os.Getenv("VAT_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			return rate
		}
	}
	return services.DefaultVATRate
}

// CreateJob books a wash. The price, platform fee and VAT are computed from
// the company's base price and fee package and frozen into JobFinancials.
func (jc *JobController) CreateJob(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var customer models.Customer
	if err := jc.DB.Where("user_id = ?", userID).First(&customer).Error; err != nil {
		utils.RespondError(c, http.StatusForbidden, errors.New("no customer profile for this account"))
		return
	}

	type reqBody struct {
		CompanyID    uint    `json:"company_id" binding:"required"`
		VehiclePlate string  `json:"vehicle_plate" binding:"required"`
		VehicleModel string  `json:"vehicle_model"`
		Address      string  `json:"address" binding:"required"`
		Latitude     float64 `json:"latitude" binding:"required"`
		Longitude    float64 `json:"longitude" binding:"required"`
		Tip          float64 `json:"tip"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var company models.Company
	if err := jc.DB.First(&company, body.CompanyID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, fmt.Errorf("company not found"))
		return
	}

	// The booking location must fall inside the company's geofence.
	dist := services.Haversine(body.Latitude, body.Longitude, company.Latitude, company.Longitude)
	if company.ServiceRadiusKm <= 0 || dist > company.ServiceRadiusKm {
		utils.RespondError(c, http.StatusBadRequest,
			fmt.Errorf("location is outside the company's service area"))
		return
	}

	var setting models.FeeSetting
	settingPtr := &setting
	if err := jc.DB.Where("package_type = ? AND active = ?", company.FeePackage, true).
		First(&setting).Error; err != nil {
		// Missing fee setting falls back to zero-fee semantics.
		settingPtr = nil
	}

	fees, err := services.CalculateFees(company.BasePrice, company.FeePackage, settingPtr, vatRate(), body.Tip)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	job := models.Job{
		CustomerID:   customer.ID,
		CompanyID:    company.ID,
		VehiclePlate: body.VehiclePlate,
		VehicleModel: body.VehicleModel,
		Address:      body.Address,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		Status:       services.JobStatusPendingPayment,
		Price:        fees.Price,
		Fee:          fees.Fee,
		Tax:          fees.Tax,
		Tip:          fees.Tip,
		Total:        fees.Total,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	tx := jc.DB.Begin()
	if err := tx.Create(&job).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	fin := models.JobFinancials{
		JobID:       job.ID,
		Gross:       fees.Total,
		PlatformFee: fees.Fee,
		VAT:         fees.Tax,
		CompanyNet:  services.CompanyNet(fees) - fees.Tip, // tip credited at completion
		FeePackage:  company.FeePackage,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := tx.Create(&fin).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastPaymentPending(job)

	utils.RespondJSON(c, http.StatusCreated, "Job created", job)
}

// GetJobByID returns one job with its relations.
func (jc *JobController) GetJobByID(c *gin.Context) {
	idStr := c.Param("job_id")
	id, _ := strconv.Atoi(idStr)

	var job models.Job
	if err := jc.DB.Preload("Customer").Preload("Company").Preload("Cleaner").
		First(&job, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job detail", job)
}

// ListMyJobs returns the caller's jobs: a customer sees their bookings, a
// company its incoming work, a cleaner their assignments.
func (jc *JobController) ListMyJobs(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	role, _ := c.Get("role")

	query := jc.DB.Preload("Customer").Preload("Company").Preload("Cleaner").
		Order("created_at DESC")

	switch role {
	case "customer":
		var customer models.Customer
		if err := jc.DB.Where("user_id = ?", userID).First(&customer).Error; err != nil {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		query = query.Where("customer_id = ?", customer.ID)
	case "company":
		var company models.Company
		if err := jc.DB.Where("user_id = ?", userID).First(&company).Error; err != nil {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		query = query.Where("company_id = ?", company.ID)
	case "cleaner":
		var cleaner models.Cleaner
		if err := jc.DB.Where("user_id = ?", userID).First(&cleaner).Error; err != nil {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		query = query.Where("cleaner_id = ?", cleaner.ID)
	case "admin":
		// no filter
	default:
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := query.Find(&jobs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of jobs", jobs)
}

// AssignJob hands a paid job to a cleaner. With no cleaner_id in the body
// the nearest on-duty cleaner of the company is picked.
func (jc *JobController) AssignJob(c *gin.Context) {
	jobID, _ := strconv.Atoi(c.Param("job_id"))

	if err := jc.authorizeCompanyForJob(c, uint(jobID)); err != nil {
		return
	}

	var body struct {
		CleanerID *uint `json:"cleaner_id"`
	}
	// Body is optional.
	_ = c.ShouldBindJSON(&body)

	var job *models.Job
	var err error
	if body.CleanerID != nil {
		job, err = jc.Jobs.Assign(uint(jobID), *body.CleanerID)
	} else {
		job, err = jc.Jobs.AutoAssign(uint(jobID))
	}
	if err != nil {
		utils.RespondError(c, transitionStatusCode(err), err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job assigned", job)
}

// PayOffline marks a job paid without Stripe, for zero-fee package
// companies collecting payment themselves.
func (jc *JobController) PayOffline(c *gin.Context) {
	jobID, _ := strconv.Atoi(c.Param("job_id"))

	if err := jc.authorizeCompanyForJob(c, uint(jobID)); err != nil {
		return
	}

	job, err := jc.Jobs.MarkPaidOffline(uint(jobID))
	if err != nil {
		utils.RespondError(c, transitionStatusCode(err), err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job marked paid", job)
}

// CancelJob aborts a booking. Customers may cancel their own jobs; paid jobs
// are refunded through Stripe.
func (jc *JobController) CancelJob(c *gin.Context) {
	jobID, _ := strconv.Atoi(c.Param("job_id"))

	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	role, _ := c.Get("role")

	var job models.Job
	if err := jc.DB.Preload("Customer").First(&job, jobID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if role == "customer" && job.Customer.UserID != userID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	cancelled, err := jc.Jobs.Cancel(job.ID)
	if err != nil {
		utils.RespondError(c, transitionStatusCode(err), err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job cancelled", cancelled)
}

// RateJob records the customer's rating on a completed job.
func (jc *JobController) RateJob(c *gin.Context) {
	jobID, _ := strconv.Atoi(c.Param("job_id"))

	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var customer models.Customer
	if err := jc.DB.Where("user_id = ?", userID).First(&customer).Error; err != nil {
		utils.RespondError(c, http.StatusForbidden, errors.New("no customer profile for this account"))
		return
	}

	var body struct {
		Rating int    `json:"rating" binding:"required,min=1,max=5"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	job, err := jc.Jobs.Rate(uint(jobID), customer.ID, body.Rating, body.Review)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job rated", job)
}

// authorizeCompanyForJob ensures the caller is the job's company (or admin).
// On failure it writes the error response and returns it.
func (jc *JobController) authorizeCompanyForJob(c *gin.Context, jobID uint) error {
	role, _ := c.Get("role")
	if role == "admin" {
		return nil
	}
	if role != "company" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return ErrNoPermission
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return err
	}

	var company models.Company
	if err := jc.DB.Where("user_id = ?", userID).First(&company).Error; err != nil {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return err
	}

	var job models.Job
	if err := jc.DB.First(&job, jobID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return err
	}

	if job.CompanyID != company.ID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return ErrNoPermission
	}

	return nil
}

// transitionStatusCode maps workflow and guard errors to 400, missing
// records to 404.
func transitionStatusCode(err error) int {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
