package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type AdminController struct {
	DB   *gorm.DB
	Jobs *services.JobService
}

func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{DB: db, Jobs: services.NewJobService(db)}
}

// GetAnalytics returns the platform-wide dashboard: job counts per status,
// revenue, today's activity and the busiest companies.
func (ac *AdminController) GetAnalytics(c *gin.Context) {
	today := time.Now().Format("2006-01-02")

	var analytics struct {
		TotalUsers       int64   `json:"total_users"`
		TotalCompanies   int64   `json:"total_companies"`
		TotalCleaners    int64   `json:"total_cleaners"`
		TotalJobs        int64   `json:"total_jobs"`
		JobsToday        int64   `json:"jobs_today"`
		CompletedToday   int64   `json:"completed_today"`
		PlatformRevenue  float64 `json:"platform_revenue"`
		VATCollected     float64 `json:"vat_collected"`
		GrossVolume      float64 `json:"gross_volume"`
		StatusBreakdown  []struct {
			Status string `json:"status"`
			Count  int64  `json:"count"`
		} `json:"status_breakdown"`
		TopCompanies []struct {
			CompanyID   uint    `json:"company_id"`
			CompanyName string  `json:"company_name"`
			Jobs        int64   `json:"jobs"`
			Revenue     float64 `json:"revenue"`
		} `json:"top_companies"`
	}

	ac.DB.Model(&models.User{}).Count(&analytics.TotalUsers)
	ac.DB.Model(&models.Company{}).Count(&analytics.TotalCompanies)
	ac.DB.Model(&models.Cleaner{}).Count(&analytics.TotalCleaners)
	ac.DB.Model(&models.Job{}).Count(&analytics.TotalJobs)
	ac.DB.Model(&models.Job{}).Where("DATE(created_at) = ?", today).Count(&analytics.JobsToday)
	ac.DB.Model(&models.Job{}).
		Where("status = ? AND DATE(completed_at) = ?", services.JobStatusCompleted, today).
		Count(&analytics.CompletedToday)

	// Revenue comes from the frozen per-job split of completed jobs, not from
	// recomputing fees against current settings.
	ac.DB.Model(&models.JobFinancials{}).
		Joins("JOIN jobs ON jobs.id = job_financials.job_id").
		Where("jobs.status = ?", services.JobStatusCompleted).
		Select("COALESCE(SUM(job_financials.platform_fee), 0)").
		Scan(&analytics.PlatformRevenue)
	ac.DB.Model(&models.JobFinancials{}).
		Joins("JOIN jobs ON jobs.id = job_financials.job_id").
		Where("jobs.status = ?", services.JobStatusCompleted).
		Select("COALESCE(SUM(job_financials.vat), 0)").
		Scan(&analytics.VATCollected)
	ac.DB.Model(&models.Job{}).
		Where("status = ?", services.JobStatusCompleted).
		Select("COALESCE(SUM(total), 0)").
		Scan(&analytics.GrossVolume)

	ac.DB.Model(&models.Job{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&analytics.StatusBreakdown)

	ac.DB.Model(&models.Job{}).
		Select("jobs.company_id, companies.name as company_name, COUNT(*) as jobs, COALESCE(SUM(jobs.total), 0) as revenue").
		Joins("JOIN companies ON companies.id = jobs.company_id").
		Where("jobs.status = ?", services.JobStatusCompleted).
		Group("jobs.company_id, companies.name").
		Order("revenue DESC").
		Limit(5).
		Scan(&analytics.TopCompanies)

	realtime.BroadcastDashboardUpdate(analytics)

	utils.RespondJSON(c, http.StatusOK, "Platform analytics", analytics)
}

// ListJobs returns all jobs, optionally filtered by status.
func (ac *AdminController) ListJobs(c *gin.Context) {
	query := ac.DB.Preload("Customer.User").Preload("Company").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := query.Find(&jobs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All jobs", jobs)
}

// ListCompanies returns all companies with their owners.
func (ac *AdminController) ListCompanies(c *gin.Context) {
	var companies []models.Company
	if err := ac.DB.Preload("User").Order("created_at DESC").Find(&companies).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All companies", companies)
}

// ListFeeSettings returns the fee formula per package.
func (ac *AdminController) ListFeeSettings(c *gin.Context) {
	var settings []models.FeeSetting
	if err := ac.DB.Order("package_type ASC").Find(&settings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Fee settings", settings)
}

// UpsertFeeSetting creates or replaces the fee formula for one package.
// Existing job financials are never touched.
func (ac *AdminController) UpsertFeeSetting(c *gin.Context) {
	var body struct {
		PackageType string  `json:"package_type" binding:"required"`
		Percent     float64 `json:"percent"`
		Flat        float64 `json:"flat"`
		Active      *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	switch body.PackageType {
	case services.FeePackageCustom, services.FeePackageOne, services.FeePackageTwo:
	default:
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown fee package: %s", body.PackageType))
		return
	}
	if body.Percent < 0 || body.Percent >= 100 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("percent must be in [0, 100)"))
		return
	}
	if body.Flat < 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("flat fee cannot be negative"))
		return
	}

	active := true
	if body.Active != nil {
		active = *body.Active
	}

	var setting models.FeeSetting
	err := ac.DB.Where("package_type = ?", body.PackageType).First(&setting).Error
	switch {
	case err == nil:
		setting.Percent = body.Percent
		setting.Flat = body.Flat
		setting.Active = active
		setting.UpdatedAt = time.Now()
		err = ac.DB.Save(&setting).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.FeeSetting{
			PackageType: body.PackageType,
			Percent:     body.Percent,
			Flat:        body.Flat,
			Active:      active,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		err = ac.DB.Create(&setting).Error
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Fee setting for %s updated: %.2f%% + %.2f (active=%v)",
		setting.PackageType, setting.Percent, setting.Flat, setting.Active)

	utils.RespondJSON(c, http.StatusOK, "Fee setting saved", setting)
}

// ListWithdrawals returns withdrawal requests across all companies.
func (ac *AdminController) ListWithdrawals(c *gin.Context) {
	query := ac.DB.Preload("Company").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var withdrawals []models.CompanyWithdrawal
	if err := query.Find(&withdrawals).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Withdrawal requests", withdrawals)
}

// ProcessWithdrawal moves a withdrawal to approved, rejected or paid. Paying
// debits the company balance and writes the withdrawal transaction.
func (ac *AdminController) ProcessWithdrawal(c *gin.Context) {
	adminID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	withdrawalID, _ := strconv.Atoi(c.Param("withdrawal_id"))

	var body struct {
		Action string `json:"action" binding:"required,oneof=approve reject pay"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var withdrawal models.CompanyWithdrawal
	if err := ac.DB.Preload("Company").First(&withdrawal, withdrawalID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	now := time.Now()

	tx := ac.DB.Begin()

	switch body.Action {
	case "approve":
		if withdrawal.Status != models.WithdrawalRequested {
			tx.Rollback()
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("cannot approve a %s withdrawal", withdrawal.Status))
			return
		}
		withdrawal.Status = models.WithdrawalApproved

	case "reject":
		if withdrawal.Status != models.WithdrawalRequested && withdrawal.Status != models.WithdrawalApproved {
			tx.Rollback()
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("cannot reject a %s withdrawal", withdrawal.Status))
			return
		}
		withdrawal.Status = models.WithdrawalRejected

	case "pay":
		if withdrawal.Status != models.WithdrawalApproved {
			tx.Rollback()
			utils.RespondError(c, http.StatusBadRequest, errors.New("only approved withdrawals can be paid"))
			return
		}
		if withdrawal.Amount > withdrawal.Company.Balance {
			tx.Rollback()
			utils.RespondError(c, http.StatusBadRequest, errors.New("company balance no longer covers this withdrawal"))
			return
		}

		withdrawal.Company.Balance = services.RoundMoney(withdrawal.Company.Balance - withdrawal.Amount)
		withdrawal.Company.UpdatedAt = now
		if err := tx.Save(&withdrawal.Company).Error; err != nil {
			tx.Rollback()
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}

		record := models.Transaction{
			UserID:       withdrawal.Company.UserID,
			Type:         models.TxWithdrawal,
			Amount:       -withdrawal.Amount,
			BalanceAfter: withdrawal.Company.Balance,
			Description:  fmt.Sprintf("Withdrawal #%d paid out", withdrawal.ID),
			CreatedAt:    now,
		}
		if err := tx.Create(&record).Error; err != nil {
			tx.Rollback()
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}

		withdrawal.Status = models.WithdrawalPaid
	}

	withdrawal.Note = body.Note
	withdrawal.ProcessedBy = &adminID
	withdrawal.ProcessedAt = &now
	withdrawal.UpdatedAt = now
	if err := tx.Save(&withdrawal).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastWithdrawalUpdate(withdrawal)
	services.NotifyUser(ac.DB, withdrawal.Company.UserID,
		"Withdrawal update",
		fmt.Sprintf("Your withdrawal of %s is now %s", utils.FormatCurrency(withdrawal.Amount), withdrawal.Status))

	utils.RespondJSON(c, http.StatusOK, "Withdrawal processed", withdrawal)
}

// RefundJob refunds a paid or completed job. Admin escalation path.
func (ac *AdminController) RefundJob(c *gin.Context) {
	jobID, _ := strconv.Atoi(c.Param("job_id"))

	job, err := ac.Jobs.Refund(uint(jobID))
	if err != nil {
		utils.RespondError(c, transitionStatusCode(err), err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job refunded", job)
}

// ExportRevenuePDF renders the revenue report for a date range as PDF.
func (ac *AdminController) ExportRevenuePDF(c *gin.Context) {
	from := c.DefaultQuery("from", time.Now().AddDate(0, -1, 0).Format("2006-01-02"))
	to := c.DefaultQuery("to", time.Now().Format("2006-01-02"))

	type row struct {
		CompanyName string
		Jobs        int64
		Gross       float64
		PlatformFee float64
		VAT         float64
		CompanyNet  float64
	}
	var rows []row
	if err := ac.DB.Model(&models.JobFinancials{}).
		Select("companies.name as company_name, COUNT(*) as jobs, "+
			"COALESCE(SUM(job_financials.gross), 0) as gross, "+
			"COALESCE(SUM(job_financials.platform_fee), 0) as platform_fee, "+
			"COALESCE(SUM(job_financials.vat), 0) as vat, "+
			"COALESCE(SUM(job_financials.company_net), 0) as company_net").
		Joins("JOIN jobs ON jobs.id = job_financials.job_id").
		Joins("JOIN companies ON companies.id = jobs.company_id").
		Where("jobs.status = ? AND DATE(jobs.completed_at) BETWEEN ? AND ?",
			services.JobStatusCompleted, from, to).
		Group("companies.name").
		Order("gross DESC").
		Scan(&rows).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Revenue Report")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", from, to))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 9)
	widths := []float64{55, 15, 30, 30, 30, 30}
	headers := []string{"Company", "Jobs", "Gross", "Fee", "VAT", "Net"}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	var totalGross, totalFee, totalVAT, totalNet float64
	for _, r := range rows {
		pdf.CellFormat(widths[0], 6, r.CompanyName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.FormatInt(r.Jobs, 10), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, utils.FormatCurrency(r.Gross), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, utils.FormatCurrency(r.PlatformFee), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, utils.FormatCurrency(r.VAT), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, utils.FormatCurrency(r.CompanyNet), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		totalGross += r.Gross
		totalFee += r.PlatformFee
		totalVAT += r.VAT
		totalNet += r.CompanyNet
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(widths[0]+widths[1], 7, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[2], 7, utils.FormatCurrency(totalGross), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 7, utils.FormatCurrency(totalFee), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 7, utils.FormatCurrency(totalVAT), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[5], 7, utils.FormatCurrency(totalNet), "1", 0, "R", false, 0, "")

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="revenue_%s_%s.pdf"`, from, to))
	if err := pdf.Output(c.Writer); err != nil {
		utils.ErrorLogger.Printf("Error writing revenue PDF: %v", err)
	}
}
