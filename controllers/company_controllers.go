package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type CompanyController struct {
	DB *gorm.DB
}

func NewCompanyController(db *gorm.DB) *CompanyController {
	return &CompanyController{DB: db}
}

// NearbyCompanies lists every company whose geofence covers the given
// location, nearest first. Public endpoint used during booking.
func (cc *CompanyController) NearbyCompanies(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("lat and lng query parameters are required"))
		return
	}

	matches, err := services.NearbyCompanies(cc.DB, lat, lng)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Nearby companies", matches)
}

// GetMyCompany returns the caller's company record.
func (cc *CompanyController) GetMyCompany(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Company detail", company)
}

// UpdateCompany changes territory and pricing: geofence radius, location,
// base price, fee package.
func (cc *CompanyController) UpdateCompany(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}

	var body struct {
		Name            *string  `json:"name"`
		Address         *string  `json:"address"`
		Latitude        *float64 `json:"latitude"`
		Longitude       *float64 `json:"longitude"`
		ServiceRadiusKm *float64 `json:"service_radius_km"`
		BasePrice       *float64 `json:"base_price"`
		FeePackage      *string  `json:"fee_package"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Name != nil {
		company.Name = *body.Name
	}
	if body.Address != nil {
		company.Address = *body.Address
	}
	if body.Latitude != nil {
		company.Latitude = *body.Latitude
	}
	if body.Longitude != nil {
		company.Longitude = *body.Longitude
	}
	if body.ServiceRadiusKm != nil {
		if *body.ServiceRadiusKm < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("service radius cannot be negative"))
			return
		}
		company.ServiceRadiusKm = *body.ServiceRadiusKm
	}
	if body.BasePrice != nil {
		if *body.BasePrice <= 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("base price must be positive"))
			return
		}
		company.BasePrice = *body.BasePrice
	}
	if body.FeePackage != nil {
		switch *body.FeePackage {
		case services.FeePackageCustom, services.FeePackageOne, services.FeePackageTwo:
			company.FeePackage = *body.FeePackage
		default:
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown fee package: %s", *body.FeePackage))
			return
		}
	}

	company.UpdatedAt = time.Now()
	if err := cc.DB.Save(company).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Company updated", company)
}

// GetStaff lists the company's cleaners with duty status and last location.
func (cc *CompanyController) GetStaff(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}

	var cleaners []models.Cleaner
	if err := cc.DB.Preload("User").Where("company_id = ?", company.ID).Find(&cleaners).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Company staff", cleaners)
}

// InviteCleaner creates an invitation token valid for 7 days.
func (cc *CompanyController) InviteCleaner(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}

	var body struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	invitation := models.CleanerInvitation{
		CompanyID: company.ID,
		Email:     body.Email,
		Token:     uuid.NewString(),
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := cc.DB.Create(&invitation).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Cleaner invitation created for %s by company %d", body.Email, company.ID)

	utils.RespondJSON(c, http.StatusCreated, "Invitation created", invitation)
}

// AcceptInvitation is public: the invited cleaner registers with the token
// and gets an account bound to the inviting company.
func (cc *CompanyController) AcceptInvitation(c *gin.Context) {
	var body struct {
		Token    string `json:"token" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
		Phone    string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var invitation models.CleanerInvitation
	if err := cc.DB.Where("token = ?", body.Token).First(&invitation).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("invitation not found"))
		return
	}

	if invitation.Status != models.InvitationPending {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invitation already used"))
		return
	}
	if time.Now().After(invitation.ExpiresAt) {
		invitation.Status = models.InvitationExpired
		cc.DB.Save(&invitation)
		utils.RespondError(c, http.StatusBadRequest, errors.New("invitation expired"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tx := cc.DB.Begin()

	user := models.User{
		Name:     body.Name,
		Email:    invitation.Email,
		Password: string(hashed),
		Role:     "cleaner",
		Phone:    body.Phone,
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cleaner := models.Cleaner{
		UserID:     user.ID,
		CompanyID:  invitation.CompanyID,
		DutyStatus: models.DutyOff,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := tx.Create(&cleaner).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	invitation.Status = models.InvitationAccepted
	invitation.UpdatedAt = time.Now()
	if err := tx.Save(&invitation).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastStaffNotification(fmt.Sprintf("%s joined the team", user.Name))

	utils.RespondJSON(c, http.StatusCreated, "Invitation accepted", gin.H{
		"user_id":    user.ID,
		"cleaner_id": cleaner.ID,
	})
}

// RequestWithdrawal asks to pay out part of the company balance.
func (cc *CompanyController) RequestWithdrawal(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}

	var body struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Amount > company.Balance {
		utils.RespondError(c, http.StatusBadRequest,
			fmt.Errorf("amount exceeds available balance of %.2f", company.Balance))
		return
	}

	withdrawal := models.CompanyWithdrawal{
		CompanyID: company.ID,
		Amount:    services.RoundMoney(body.Amount),
		Status:    models.WithdrawalRequested,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := cc.DB.Create(&withdrawal).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastWithdrawalUpdate(withdrawal)

	utils.RespondJSON(c, http.StatusCreated, "Withdrawal requested", withdrawal)
}

// ListWithdrawals returns the company's withdrawal history.
func (cc *CompanyController) ListWithdrawals(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}

	var withdrawals []models.CompanyWithdrawal
	if err := cc.DB.Where("company_id = ?", company.ID).
		Order("created_at DESC").Find(&withdrawals).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Withdrawals", withdrawals)
}

// Dashboard returns the company's operational stats.
func (cc *CompanyController) Dashboard(c *gin.Context) {
	company, err := cc.companyForCaller(c)
	if err != nil {
		return
	}

	today := time.Now().Format("2006-01-02")

	var stats struct {
		Balance       float64 `json:"balance"`
		TotalJobs     int64   `json:"total_jobs"`
		TodayJobs     int64   `json:"today_jobs"`
		ActiveJobs    int64   `json:"active_jobs"`
		CompletedJobs int64   `json:"completed_jobs"`
		OnDutyStaff   int64   `json:"on_duty_staff"`
		TotalStaff    int64   `json:"total_staff"`
	}

	stats.Balance = company.Balance
	cc.DB.Model(&models.Job{}).Where("company_id = ?", company.ID).Count(&stats.TotalJobs)
	cc.DB.Model(&models.Job{}).Where("company_id = ? AND DATE(created_at) = ?", company.ID, today).Count(&stats.TodayJobs)
	cc.DB.Model(&models.Job{}).
		Where("company_id = ? AND status IN ?", company.ID,
			[]string{services.JobStatusPaid, services.JobStatusAssigned, services.JobStatusInProgress}).
		Count(&stats.ActiveJobs)
	cc.DB.Model(&models.Job{}).
		Where("company_id = ? AND status = ?", company.ID, services.JobStatusCompleted).
		Count(&stats.CompletedJobs)
	cc.DB.Model(&models.Cleaner{}).
		Where("company_id = ? AND duty_status = ?", company.ID, models.DutyOn).
		Count(&stats.OnDutyStaff)
	cc.DB.Model(&models.Cleaner{}).Where("company_id = ?", company.ID).Count(&stats.TotalStaff)

	utils.RespondJSON(c, http.StatusOK, "Company dashboard", stats)
}

// companyForCaller loads the company owned by the authenticated user. On
// failure it writes the error response and returns it.
func (cc *CompanyController) companyForCaller(c *gin.Context) (*models.Company, error) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return nil, err
	}

	var company models.Company
	if err := cc.DB.Where("user_id = ?", userID).First(&company).Error; err != nil {
		utils.RespondError(c, http.StatusForbidden, errors.New("no company profile for this account"))
		return nil, err
	}

	return &company, nil
}
