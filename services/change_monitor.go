package services

import (
	"log"
	"time"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"gorm.io/gorm"
)

// ChangeMonitor drains the db_changes outbox filled by database triggers and
// turns rows into websocket events. This catches mutations done outside the
// API (manual SQL, other processes).
type ChangeMonitor struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration
}

func NewChangeMonitor(db *gorm.DB) *ChangeMonitor {
	return &ChangeMonitor{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 1 * time.Second,
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.checkChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	close(cm.StopChan)
}

func (cm *ChangeMonitor) checkChanges() {
	var changes []models.DBChange

	tx := cm.DB.Begin()

	if err := tx.Where("processed = ?", false).
		Order("changed_at ASC").
		Limit(100).
		Find(&changes).Error; err != nil {
		tx.Rollback()
		log.Printf("Error fetching changes: %v", err)
		return
	}

	for _, change := range changes {
		switch change.TableName {
		case "jobs":
			cm.processJobChange(change)
		case "company_withdrawals":
			cm.processWithdrawalChange(change)
		case "cleaners":
			cm.processCleanerChange(change)
		}

		if err := tx.Model(&models.DBChange{}).
			Where("id = ?", change.ID).
			Update("processed", true).Error; err != nil {
			tx.Rollback()
			log.Printf("Error marking change as processed: %v", err)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("Error committing change batch: %v", err)
		return
	}

	if len(changes) > 0 {
		log.Printf("Processed %d outbox changes", len(changes))
	}
}

func (cm *ChangeMonitor) processJobChange(change models.DBChange) {
	if change.ActionType == "DELETE" {
		return
	}

	var job models.Job
	if err := cm.DB.First(&job, change.RecordID).Error; err != nil {
		log.Printf("Error fetching job %d: %v", change.RecordID, err)
		return
	}

	realtime.BroadcastJobUpdate(job)
}

func (cm *ChangeMonitor) processWithdrawalChange(change models.DBChange) {
	if change.ActionType == "DELETE" {
		return
	}

	var w models.CompanyWithdrawal
	if err := cm.DB.First(&w, change.RecordID).Error; err != nil {
		log.Printf("Error fetching withdrawal %d: %v", change.RecordID, err)
		return
	}

	realtime.BroadcastWithdrawalUpdate(w)
}

func (cm *ChangeMonitor) processCleanerChange(change models.DBChange) {
	if change.ActionType != "UPDATE" {
		return
	}

	var cleaner models.Cleaner
	if err := cm.DB.First(&cleaner, change.RecordID).Error; err != nil {
		log.Printf("Error fetching cleaner %d: %v", change.RecordID, err)
		return
	}

	realtime.BroadcastMessage(realtime.Message{
		Event: "cleaner_update",
		Data:  cleaner,
	})
}
