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
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type ReceiptController struct {
	DB *gorm.DB
}

func NewReceiptController(db *gorm.DB) *ReceiptController {
	return &ReceiptController{DB: db}
}

// GetJobReceipt renders the receipt PDF for a completed or refunded job.
// Customers get their own receipts, companies the receipts of their jobs,
// admins everything.
func (rc *ReceiptController) GetJobReceipt(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	roleInterface, _ := c.Get("role")
	role, _ := roleInterface.(string)

	jobID, _ := strconv.Atoi(c.Param("job_id"))

	var job models.Job
	if err := rc.DB.Preload("Customer.User").Preload("Company").Preload("Cleaner.User").
		First(&job, jobID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	switch role {
	case "customer":
		if job.Customer.UserID != userID {
			utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
			return
		}
	case "company":
		if job.Company.UserID != userID {
			utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
			return
		}
	case "admin":
	default:
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	if job.Status != services.JobStatusCompleted && job.Status != services.JobStatusRefunded {
		utils.RespondError(c, http.StatusBadRequest, errors.New("receipt is only available for completed or refunded jobs"))
		return
	}

	var fin models.JobFinancials
	if err := rc.DB.Where("job_id = ?", job.ID).First(&fin).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Washline")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Receipt %s", job.Reference()))
	pdf.Ln(6)
	issued := time.Now()
	if job.CompletedAt != nil {
		issued = *job.CompletedAt
	}
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", issued.Format("02 Jan 2006 15:04")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 7, "Service")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Provider: %s", job.Company.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Location: %s", job.Address))
	pdf.Ln(5)
	if job.VehiclePlate != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Vehicle: %s %s", job.VehicleModel, job.VehiclePlate))
		pdf.Ln(5)
	}
	if job.Cleaner != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Cleaner: %s", job.Cleaner.User.Name))
		pdf.Ln(5)
	}
	pdf.Ln(5)

	line := func(label string, amount float64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(120, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, utils.FormatCurrency(amount), "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	line("Wash", job.Price, false)
	line("Service fee", job.Fee, false)
	line("VAT", job.Tax, false)
	if job.Tip > 0 {
		line("Tip", job.Tip, false)
	}
	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+170, pdf.GetY())
	pdf.Ln(2)
	line("Total", job.Total, true)

	if job.Status == services.JobStatusRefunded {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(180, 30, 30)
		refunded := ""
		if job.RefundedAt != nil {
			refunded = job.RefundedAt.Format("02 Jan 2006")
		}
		pdf.Cell(0, 7, fmt.Sprintf("REFUNDED %s", refunded))
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 5, fmt.Sprintf("Fee package: %s", fin.FeePackage))

	utils.InfoLogger.Printf("Receipt generated for job %d by user %d", job.ID, userID)

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, job.Reference()))
	if err := pdf.Output(c.Writer); err != nil {
		utils.ErrorLogger.Printf("Error writing receipt PDF for job %d: %v", job.ID, err)
	}
}
