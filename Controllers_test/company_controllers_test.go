package Controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/washline/carwash-app/controllers"
	"github.com/washline/carwash-app/models"
	"github.com/washline/carwash-app/utils"
)

func TestNearbyCompaniesEndpoint(t *testing.T) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t, "ctrl_nearby")

	owner := models.User{Name: "Owner", Email: "owner@example.com", Password: "x", Role: "company"}
	assert.NoError(t, db.Create(&owner).Error)

	inRange := models.Company{UserID: owner.ID, Name: "In Range", Latitude: 0, Longitude: 0, ServiceRadiusKm: 20, BasePrice: 20}
	outOfRange := models.Company{UserID: owner.ID + 1, Name: "Out Of Range", Latitude: 5, Longitude: 5, ServiceRadiusKm: 5, BasePrice: 20}
	assert.NoError(t, db.Create(&inRange).Error)
	assert.NoError(t, db.Create(&outOfRange).Error)

	companyCtrl := controllers.NewCompanyController(db)
	router := gin.Default()
	router.GET("/api/companies/nearby", companyCtrl.NearbyCompanies)

	w := doJSON(t, router, "GET", "/api/companies/nearby?lat=0.05&lng=0.05", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := parseEnvelope(t, w)
	matches := resp["data"].([]interface{})
	assert.Len(t, matches, 1)
	match := matches[0].(map[string]interface{})
	company := match["company"].(map[string]interface{})
	assert.Equal(t, "In Range", company["name"])
	assert.Greater(t, match["distance_km"], 0.0)

	// Missing coordinates are a client error.
	w = doJSON(t, router, "GET", "/api/companies/nearby?lat=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvitationFlow(t *testing.T) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t, "ctrl_invitations")

	owner := models.User{Name: "Owner", Email: "owner@example.com", Password: "x", Role: "company"}
	assert.NoError(t, db.Create(&owner).Error)
	company := models.Company{UserID: owner.ID, Name: "Shine & Go", ServiceRadiusKm: 10, BasePrice: 25}
	assert.NoError(t, db.Create(&company).Error)

	companyCtrl := controllers.NewCompanyController(db)
	router := gin.Default()
	router.POST("/api/company/staff/invite", asUser(owner.ID, "company"), companyCtrl.InviteCleaner)
	router.POST("/invitations/accept", companyCtrl.AcceptInvitation)

	w := doJSON(t, router, "POST", "/api/company/staff/invite", map[string]string{
		"email": "newcleaner@example.com",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var invitation models.CleanerInvitation
	assert.NoError(t, db.First(&invitation).Error)
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.NotEmpty(t, invitation.Token)

	// Accepting creates the cleaner account bound to the inviting company.
	w = doJSON(t, router, "POST", "/invitations/accept", map[string]string{
		"token":    invitation.Token,
		"name":     "Kim Cleaner",
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var cleaner models.Cleaner
	assert.NoError(t, db.First(&cleaner).Error)
	assert.Equal(t, company.ID, cleaner.CompanyID)
	assert.Equal(t, models.DutyOff, cleaner.DutyStatus)

	var cleanerUser models.User
	assert.NoError(t, db.First(&cleanerUser, cleaner.UserID).Error)
	assert.Equal(t, "cleaner", cleanerUser.Role)
	assert.Equal(t, "newcleaner@example.com", cleanerUser.Email)

	// A token cannot be used twice.
	w = doJSON(t, router, "POST", "/invitations/accept", map[string]string{
		"token":    invitation.Token,
		"name":     "Again",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t, "ctrl_invitation_expired")

	invitation := models.CleanerInvitation{
		CompanyID: 1,
		Email:     "late@example.com",
		Token:     "expired-token",
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	assert.NoError(t, db.Create(&invitation).Error)

	companyCtrl := controllers.NewCompanyController(db)
	router := gin.Default()
	router.POST("/invitations/accept", companyCtrl.AcceptInvitation)

	w := doJSON(t, router, "POST", "/invitations/accept", map[string]string{
		"token":    "expired-token",
		"name":     "Late",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var got models.CleanerInvitation
	assert.NoError(t, db.First(&got, invitation.ID).Error)
	assert.Equal(t, models.InvitationExpired, got.Status)
}

func TestRequestWithdrawalValidatesBalance(t *testing.T) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t, "ctrl_withdrawals")

	owner := models.User{Name: "Owner", Email: "owner@example.com", Password: "x", Role: "company"}
	assert.NoError(t, db.Create(&owner).Error)
	company := models.Company{UserID: owner.ID, Name: "Shine & Go", Balance: 50}
	assert.NoError(t, db.Create(&company).Error)

	companyCtrl := controllers.NewCompanyController(db)
	router := gin.Default()
	router.POST("/api/company/withdrawals", asUser(owner.ID, "company"), companyCtrl.RequestWithdrawal)

	// More than the balance is rejected.
	w := doJSON(t, router, "POST", "/api/company/withdrawals", map[string]float64{"amount": 51})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/company/withdrawals", map[string]float64{"amount": 30})
	assert.Equal(t, http.StatusCreated, w.Code)

	var withdrawal models.CompanyWithdrawal
	assert.NoError(t, db.First(&withdrawal).Error)
	assert.Equal(t, models.WithdrawalRequested, withdrawal.Status)
	assert.Equal(t, 30.0, withdrawal.Amount)
}

func TestUpdateCompanyValidation(t *testing.T) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t, "ctrl_update_company")

	owner := models.User{Name: "Owner", Email: "owner@example.com", Password: "x", Role: "company"}
	assert.NoError(t, db.Create(&owner).Error)
	company := models.Company{UserID: owner.ID, Name: "Shine & Go", ServiceRadiusKm: 10, BasePrice: 25, FeePackage: "package1"}
	assert.NoError(t, db.Create(&company).Error)

	companyCtrl := controllers.NewCompanyController(db)
	router := gin.Default()
	router.PATCH("/api/company/me", asUser(owner.ID, "company"), companyCtrl.UpdateCompany)

	// Unknown fee package rejected.
	w := doJSON(t, router, "PATCH", "/api/company/me", map[string]interface{}{"fee_package": "package9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Negative radius rejected.
	w = doJSON(t, router, "PATCH", "/api/company/me", map[string]interface{}{"service_radius_km": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Partial update only touches the provided fields.
	w = doJSON(t, router, "PATCH", "/api/company/me", map[string]interface{}{
		"service_radius_km": 15,
		"fee_package":       "package2",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var got models.Company
	assert.NoError(t, db.First(&got, company.ID).Error)
	assert.Equal(t, 15.0, got.ServiceRadiusKm)
	assert.Equal(t, "package2", got.FeePackage)
	assert.Equal(t, 25.0, got.BasePrice)
	assert.Equal(t, "Shine & Go", got.Name)
}
