package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/router"
	"github.com/washline/carwash-app/services"
	"github.com/washline/carwash-app/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEndToEndIntegration walks the main booking flow over HTTP:
// login -> book a wash -> offline payment -> auto-assign -> start ->
// complete -> rate, then checks the company got paid.
func TestEndToEndIntegration(t *testing.T) {
	db := setupIntegrationDB(t)
	paymentMonitor := services.NewPaymentMonitor(db)
	r := router.SetupRouter(db, paymentMonitor)

	companyToken := loginAs(t, r, "owner@example.com")
	customerToken := loginAs(t, r, "cara@example.com")

	// Company invites a cleaner, the cleaner joins and logs in.
	w := request(t, r, "POST", "/api/company/staff/invite", companyToken, map[string]string{
		"email": "kim@example.com",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var invitation models.CleanerInvitation
	assert.NoError(t, db.First(&invitation).Error)

	w = request(t, r, "POST", "/invitations/accept", "", map[string]string{
		"token":    invitation.Token,
		"name":     "Kim Cleaner",
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	cleanerToken := loginAs(t, r, "kim@example.com")

	// Cleaner goes on duty.
	w = request(t, r, "POST", "/api/cleaner/shifts/start", cleanerToken, map[string]float64{
		"latitude":  52.52,
		"longitude": 13.40,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Customer books a wash inside the company's geofence.
	w = request(t, r, "POST", "/api/jobs", customerToken, map[string]interface{}{
		"company_id":    1,
		"vehicle_plate": "B-WX 1234",
		"vehicle_model": "Golf",
		"address":       "Main St 1",
		"latitude":      52.521,
		"longitude":     13.406,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	jobID := jobIDFrom(t, w)

	// Zero-fee package company collects the payment itself.
	w = request(t, r, "POST", fmt.Sprintf("/api/company/jobs/%d/pay-offline", jobID), companyToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// No cleaner_id in the body picks the nearest on-duty cleaner.
	w = request(t, r, "POST", fmt.Sprintf("/api/company/jobs/%d/assign", jobID), companyToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, "POST", fmt.Sprintf("/api/cleaner/jobs/%d/start", jobID), cleanerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, "POST", fmt.Sprintf("/api/cleaner/jobs/%d/complete", jobID), cleanerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, "POST", fmt.Sprintf("/api/jobs/%d/rate", jobID), customerToken, map[string]interface{}{
		"rating": 5,
		"review": "spotless",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// The company earned the full base price (zero-fee package, no tip).
	var company models.Company
	assert.NoError(t, db.First(&company, 1).Error)
	assert.Equal(t, 25.0, company.Balance)

	var job models.Job
	assert.NoError(t, db.First(&job, jobID).Error)
	assert.Equal(t, services.JobStatusCompleted, job.Status)
	assert.Equal(t, 5, *job.Rating)

	var shift models.ShiftSession
	assert.NoError(t, db.Where("ended_at IS NULL").First(&shift).Error)
	assert.Equal(t, 1, shift.JobsCompleted)
}

func setupIntegrationDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Company{},
		&models.Cleaner{},
		&models.CleanerInvitation{},
		&models.Job{},
		&models.JobFinancials{},
		&models.ShiftSession{},
		&models.Transaction{},
		&models.CompanyWithdrawal{},
		&models.FeeSetting{},
		&models.Notification{},
		&models.PushSubscription{},
		&models.DBChange{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	owner := models.User{Name: "Oskar Owner", Email: "owner@example.com", Password: string(hashed), Role: "company"}
	customer := models.User{Name: "Cara Customer", Email: "cara@example.com", Password: string(hashed), Role: "customer"}
	assert.NoError(t, db.Create(&owner).Error)
	assert.NoError(t, db.Create(&customer).Error)

	company := models.Company{
		UserID: owner.ID, Name: "Shine & Go", Address: "Wash Ave 2",
		Latitude: 52.52, Longitude: 13.405, ServiceRadiusKm: 10,
		BasePrice: 25, FeePackage: services.FeePackageTwo,
	}
	assert.NoError(t, db.Create(&company).Error)
	assert.NoError(t, db.Create(&models.Customer{UserID: customer.ID, DefaultAddress: "Main St 1"}).Error)

	setting := models.FeeSetting{
		PackageType: services.FeePackageTwo, Active: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	assert.NoError(t, db.Create(&setting).Error)

	return db
}

func loginAs(t *testing.T, r *gin.Engine, email string) string {
	w := request(t, r, "POST", "/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func request(t *testing.T, r *gin.Engine, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, body)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jobIDFrom(t *testing.T, w *httptest.ResponseRecorder) uint {
	var resp struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.Data.ID)
	return resp.Data.ID
}
