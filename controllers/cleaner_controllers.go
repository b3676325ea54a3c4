package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type CleanerController struct {
	DB   *gorm.DB
	Jobs *services.JobService
}

func NewCleanerController(db *gorm.DB) *CleanerController {
	return &CleanerController{DB: db, Jobs: services.NewJobService(db)}
}

// Dashboard returns the cleaner's current shift, assigned jobs and rating.
func (clc *CleanerController) Dashboard(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	var dashboard struct {
		Cleaner      models.Cleaner       `json:"cleaner"`
		CurrentShift *models.ShiftSession `json:"current_shift,omitempty"`
		ActiveJobs   []models.Job         `json:"active_jobs"`
		JobsToday    int64                `json:"jobs_today"`
	}

	dashboard.Cleaner = *cleaner

	var shift models.ShiftSession
	if err := clc.DB.Where("cleaner_id = ? AND ended_at IS NULL", cleaner.ID).
		First(&shift).Error; err == nil {
		dashboard.CurrentShift = &shift
	}

	clc.DB.Preload("Customer").Preload("Company").
		Where("cleaner_id = ? AND status IN ?", cleaner.ID,
			[]string{services.JobStatusAssigned, services.JobStatusInProgress}).
		Order("assigned_at ASC").
		Find(&dashboard.ActiveJobs)

	today := time.Now().Format("2006-01-02")
	clc.DB.Model(&models.Job{}).
		Where("cleaner_id = ? AND status = ? AND DATE(completed_at) = ?",
			cleaner.ID, services.JobStatusCompleted, today).
		Count(&dashboard.JobsToday)

	utils.RespondJSON(c, http.StatusOK, "Cleaner dashboard", dashboard)
}

// StartShift opens a shift session and puts the cleaner on duty. A cleaner
// has at most one open session.
func (clc *CleanerController) StartShift(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	var open int64
	clc.DB.Model(&models.ShiftSession{}).
		Where("cleaner_id = ? AND ended_at IS NULL", cleaner.ID).
		Count(&open)
	if open > 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("shift already started"))
		return
	}

	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	_ = c.ShouldBindJSON(&body)

	now := time.Now()
	session := models.ShiftSession{
		CleanerID: cleaner.ID,
		StartedAt: now,
		StartLat:  body.Latitude,
		StartLng:  body.Longitude,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx := clc.DB.Begin()
	if err := tx.Create(&session).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cleaner.DutyStatus = models.DutyOn
	if body.Latitude != nil && body.Longitude != nil {
		cleaner.LastLat = body.Latitude
		cleaner.LastLng = body.Longitude
		cleaner.LastSeenAt = &now
	}
	cleaner.UpdatedAt = now
	if err := tx.Save(cleaner).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastShiftUpdate(session)

	utils.RespondJSON(c, http.StatusCreated, "Shift started", session)
}

// EndShift closes the open shift session and puts the cleaner off duty.
func (clc *CleanerController) EndShift(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	var session models.ShiftSession
	if err := clc.DB.Where("cleaner_id = ? AND ended_at IS NULL", cleaner.ID).
		First(&session).Error; err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("no open shift"))
		return
	}

	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	_ = c.ShouldBindJSON(&body)

	now := time.Now()
	session.EndedAt = &now
	session.EndLat = body.Latitude
	session.EndLng = body.Longitude
	session.UpdatedAt = now

	tx := clc.DB.Begin()
	if err := tx.Save(&session).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cleaner.DutyStatus = models.DutyOff
	cleaner.UpdatedAt = now
	if err := tx.Save(cleaner).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastShiftUpdate(session)

	utils.RespondJSON(c, http.StatusOK, "Shift ended", session)
}

// LocationPing updates the cleaner's live position.
func (clc *CleanerController) LocationPing(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	var body struct {
		Latitude  float64 `json:"latitude" binding:"required"`
		Longitude float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	cleaner.LastLat = &body.Latitude
	cleaner.LastLng = &body.Longitude
	cleaner.LastSeenAt = &now
	cleaner.UpdatedAt = now

	if err := clc.DB.Save(cleaner).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Location updated", gin.H{
		"last_seen_at": now,
	})
}

// StartJob moves an assigned job to in_progress.
func (clc *CleanerController) StartJob(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	jobID, _ := strconv.Atoi(c.Param("job_id"))

	job, err := clc.Jobs.Start(uint(jobID), cleaner.ID)
	if err != nil {
		utils.RespondError(c, transitionStatusCode(err), err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job in progress", job)
}

// CompleteJob finishes an in_progress job.
func (clc *CleanerController) CompleteJob(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	jobID, _ := strconv.Atoi(c.Param("job_id"))

	job, err := clc.Jobs.Complete(uint(jobID), cleaner.ID)
	if err != nil {
		utils.RespondError(c, transitionStatusCode(err), err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Job completed", job)
}

// ListShifts returns the cleaner's shift history.
func (clc *CleanerController) ListShifts(c *gin.Context) {
	cleaner, err := clc.cleanerForCaller(c)
	if err != nil {
		return
	}

	var sessions []models.ShiftSession
	if err := clc.DB.Where("cleaner_id = ?", cleaner.ID).
		Order("started_at DESC").Find(&sessions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Shift history", sessions)
}

// cleanerForCaller loads the cleaner profile of the authenticated user. On
// failure it writes the error response and returns it.
func (clc *CleanerController) cleanerForCaller(c *gin.Context) (*models.Cleaner, error) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return nil, err
	}

	var cleaner models.Cleaner
	if err := clc.DB.Where("user_id = ?", userID).First(&cleaner).Error; err != nil {
		utils.RespondError(c, http.StatusForbidden, errors.New("no cleaner profile for this account"))
		return nil, err
	}

	return &cleaner, nil
}
