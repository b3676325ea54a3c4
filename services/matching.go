package services

import (
	"math"
	"sort"

	"github.com/washline/carwash-app/models"
	"gorm.io/gorm"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// CompanyMatch is a company that services the requested location, with its
// distance from the customer.
type CompanyMatch struct {
	Company    models.Company `json:"company"`
	DistanceKm float64        `json:"distance_km"`
}

// NearbyCompanies returns every company whose geofence contains the given
// point, sorted nearest first. A company with a zero service radius never
// matches.
func NearbyCompanies(db *gorm.DB, lat, lng float64) ([]CompanyMatch, error) {
	var companies []models.Company
	if err := db.Preload("User").Find(&companies).Error; err != nil {
		return nil, err
	}

	matches := make([]CompanyMatch, 0)
	for _, company := range companies {
		if company.ServiceRadiusKm <= 0 {
			continue
		}
		dist := Haversine(lat, lng, company.Latitude, company.Longitude)
		if dist <= company.ServiceRadiusKm {
			matches = append(matches, CompanyMatch{
				Company:    company,
				DistanceKm: math.Round(dist*100) / 100,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})

	return matches, nil
}

// NearestOnDutyCleaner picks the closest on-duty cleaner of a company to the
// job location. Cleaners without a recent location ping are considered last.
func NearestOnDutyCleaner(db *gorm.DB, companyID uint, lat, lng float64) (*models.Cleaner, error) {
	var cleaners []models.Cleaner
	if err := db.Preload("User").
		Where("company_id = ? AND duty_status = ?", companyID, models.DutyOn).
		Find(&cleaners).Error; err != nil {
		return nil, err
	}
	if len(cleaners) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	best := -1
	bestDist := math.MaxFloat64
	for i, cl := range cleaners {
		if cl.LastLat == nil || cl.LastLng == nil {
			continue
		}
		dist := Haversine(lat, lng, *cl.LastLat, *cl.LastLng)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}

	// No cleaner has reported a location yet; any on-duty one will do.
	if best == -1 {
		best = 0
	}

	return &cleaners[best], nil
}
