package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

type PushController struct {
	DB *gorm.DB
}

func NewPushController(db *gorm.DB) *PushController {
	return &PushController{DB: db}
}

// VAPIDPublicKey returns the key the browser needs before subscribing.
func (pc *PushController) VAPIDPublicKey(c *gin.Context) {
	ps := services.GetPushService()
	if !ps.Enabled() {
		utils.RespondError(c, http.StatusServiceUnavailable, errors.New("push notifications not configured"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "VAPID public key", gin.H{
		"public_key": ps.VAPIDPublicKey(),
	})
}

// Subscribe stores a browser push subscription. Re-subscribing with the same
// endpoint replaces the keys.
func (pc *PushController) Subscribe(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var body struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var sub models.PushSubscription
	err = pc.DB.Where("endpoint = ?", body.Endpoint).First(&sub).Error
	switch {
	case err == nil:
		sub.UserID = userID
		sub.P256dhKey = body.Keys.P256dh
		sub.AuthKey = body.Keys.Auth
		err = pc.DB.Save(&sub).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = models.PushSubscription{
			UserID:    userID,
			Endpoint:  body.Endpoint,
			P256dhKey: body.Keys.P256dh,
			AuthKey:   body.Keys.Auth,
			CreatedAt: time.Now(),
		}
		err = pc.DB.Create(&sub).Error
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Push subscription saved", gin.H{"id": sub.ID})
}

// Unsubscribe removes the subscription for the given endpoint.
func (pc *PushController) Unsubscribe(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var body struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := pc.DB.Where("user_id = ? AND endpoint = ?", userID, body.Endpoint).
		Delete(&models.PushSubscription{}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Push subscription removed", nil)
}
