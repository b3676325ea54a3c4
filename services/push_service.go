package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/realtime"
	"gorm.io/gorm"
)

// ErrSubscriptionExpired is returned when a push subscription is no longer
// valid (410 Gone).
var ErrSubscriptionExpired = errors.New("push subscription expired")

// PushPayload is the JSON sent to the browser push service.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// PushService sends VAPID web push notifications.
type PushService struct {
	publicKey  string
	privateKey string
	subscriber string
}

var (
	pushService *PushService
	pushOnce    sync.Once
)

// GetPushService returns the singleton push service, configured from
// VAPID_PUBLIC_KEY / VAPID_PRIVATE_KEY.
func GetPushService() *PushService {
	pushOnce.Do(func() {
		subscriber := os.Getenv("VAPID_SUBSCRIBER")
		if subscriber == "" {
			subscriber = "mailto:noreply@washline.app"
		}
		pushService = &PushService{
			publicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			privateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			subscriber: subscriber,
		}
	})
	return pushService
}

// VAPIDPublicKey returns the key the browser needs to subscribe.
func (ps *PushService) VAPIDPublicKey() string {
	return ps.publicKey
}

// Enabled reports whether VAPID keys are configured.
func (ps *PushService) Enabled() bool {
	return ps.publicKey != "" && ps.privateKey != ""
}

// Send delivers one notification to one subscription.
func (ps *PushService) Send(sub models.PushSubscription, payload PushPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  ps.publicKey,
		VAPIDPrivateKey: ps.privateKey,
		Subscriber:      ps.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrSubscriptionExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// NotifyUser stores an in-app notification for the user and pushes it to all
// of the user's registered browsers. Expired subscriptions are pruned.
func NotifyUser(db *gorm.DB, userID uint, title, body string) {
	notif := models.Notification{
		UserID:    &userID,
		Title:     &title,
		Message:   body,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&notif).Error; err != nil {
		log.Printf("Error storing notification for user %d: %v", userID, err)
	}

	// Connected clients see it immediately, without waiting for the push.
	realtime.SendToUser(userID, realtime.Message{Event: realtime.EventNotification, Data: notif})

	ps := GetPushService()
	if !ps.Enabled() {
		return
	}

	var subs []models.PushSubscription
	if err := db.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		log.Printf("Error loading push subscriptions for user %d: %v", userID, err)
		return
	}

	for _, sub := range subs {
		err := ps.Send(sub, PushPayload{Title: title, Body: body})
		if errors.Is(err, ErrSubscriptionExpired) {
			db.Delete(&models.PushSubscription{}, sub.ID)
			continue
		}
		if err != nil {
			log.Printf("Error pushing to user %d: %v", userID, err)
		}
	}
}
