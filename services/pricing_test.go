package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/washline/carwash-app/models"
)

func TestCalculateFees(t *testing.T) {
	tests := []struct {
		name       string
		basePrice  float64
		feePackage string
		setting    *models.FeeSetting
		vatRate    float64
		tip        float64
		want       FeeBreakdown
		wantErr    bool
	}{
		{
			name:       "custom flat fee",
			basePrice:  20,
			feePackage: FeePackageCustom,
			setting:    &models.FeeSetting{PackageType: FeePackageCustom, Flat: 2.50, Active: true},
			vatRate:    0.20,
			want:       FeeBreakdown{Price: 20, Fee: 2.50, Tax: 4.50, Tip: 0, Total: 27},
		},
		{
			name:       "package1 percent plus flat",
			basePrice:  30,
			feePackage: FeePackageOne,
			setting:    &models.FeeSetting{PackageType: FeePackageOne, Percent: 10, Flat: 0.50, Active: true},
			vatRate:    0.20,
			want:       FeeBreakdown{Price: 30, Fee: 3.50, Tax: 6.70, Tip: 0, Total: 40.20},
		},
		{
			name:       "package2 has no platform fee",
			basePrice:  25,
			feePackage: FeePackageTwo,
			setting:    &models.FeeSetting{PackageType: FeePackageTwo, Active: true},
			vatRate:    0.20,
			want:       FeeBreakdown{Price: 25, Fee: 0, Tax: 5, Tip: 0, Total: 30},
		},
		{
			name:       "tip added after tax",
			basePrice:  20,
			feePackage: FeePackageCustom,
			setting:    &models.FeeSetting{PackageType: FeePackageCustom, Flat: 2, Active: true},
			vatRate:    0.20,
			tip:        3,
			want:       FeeBreakdown{Price: 20, Fee: 2, Tax: 4.40, Tip: 3, Total: 29.40},
		},
		{
			name:       "nil setting falls back to zero fee",
			basePrice:  18,
			feePackage: FeePackageOne,
			setting:    nil,
			vatRate:    0.20,
			want:       FeeBreakdown{Price: 18, Fee: 0, Tax: 3.60, Tip: 0, Total: 21.60},
		},
		{
			name:       "inactive setting falls back to zero fee",
			basePrice:  18,
			feePackage: FeePackageOne,
			setting:    &models.FeeSetting{PackageType: FeePackageOne, Percent: 10, Flat: 1, Active: false},
			vatRate:    0.20,
			want:       FeeBreakdown{Price: 18, Fee: 0, Tax: 3.60, Tip: 0, Total: 21.60},
		},
		{
			name:       "amounts round to two decimals",
			basePrice:  19.99,
			feePackage: FeePackageOne,
			setting:    &models.FeeSetting{PackageType: FeePackageOne, Percent: 10, Flat: 0.50, Active: true},
			vatRate:    0.19,
			// fee = 19.99*0.10 + 0.50 = 2.499 -> 2.50
			// tax = (19.99+2.50)*0.19 = 4.2731 -> 4.27
			want: FeeBreakdown{Price: 19.99, Fee: 2.50, Tax: 4.27, Tip: 0, Total: 26.76},
		},
		{
			name:       "zero base price rejected",
			basePrice:  0,
			feePackage: FeePackageCustom,
			setting:    &models.FeeSetting{PackageType: FeePackageCustom, Flat: 1, Active: true},
			vatRate:    0.20,
			wantErr:    true,
		},
		{
			name:       "negative tip rejected",
			basePrice:  20,
			feePackage: FeePackageCustom,
			setting:    &models.FeeSetting{PackageType: FeePackageCustom, Flat: 1, Active: true},
			vatRate:    0.20,
			tip:        -1,
			wantErr:    true,
		},
		{
			name:       "vat rate of 1 rejected",
			basePrice:  20,
			feePackage: FeePackageCustom,
			setting:    &models.FeeSetting{PackageType: FeePackageCustom, Flat: 1, Active: true},
			vatRate:    1,
			wantErr:    true,
		},
		{
			name:       "unknown package rejected when setting active",
			basePrice:  20,
			feePackage: "package9",
			setting:    &models.FeeSetting{PackageType: "package9", Flat: 1, Active: true},
			vatRate:    0.20,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateFees(tt.basePrice, tt.feePackage, tt.setting, tt.vatRate, tt.tip)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompanyNet(t *testing.T) {
	b := FeeBreakdown{Price: 30, Fee: 3.50, Tax: 6.70, Tip: 2, Total: 42.20}
	// The company keeps the base price minus the fee, plus the whole tip.
	assert.Equal(t, 28.50, CompanyNet(b))

	noTip := FeeBreakdown{Price: 20, Fee: 2.50, Tax: 4.50, Total: 27}
	assert.Equal(t, 17.50, CompanyNet(noTip))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 2.5, RoundMoney(2.499))
	assert.Equal(t, 4.27, RoundMoney(4.2731))
	assert.Equal(t, -1.01, RoundMoney(-1.014))
	assert.Equal(t, 10.0, RoundMoney(10))
	assert.Equal(t, 0.0, RoundMoney(0))
}
