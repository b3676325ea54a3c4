package services

import (
	"fmt"
	"math"

	"github.com/washline/carwash-app/models"
)

// Fee package types.
const (
	FeePackageCustom   = "custom"   // flat platform fee
	FeePackageOne      = "package1" // percentage of base price plus flat component
	FeePackageTwo      = "package2" // zero platform fee, company collects offline
)

// DefaultVATRate is applied when VAT_RATE is not configured.
const DefaultVATRate = 0.20

// FeeBreakdown is the result of the pricing calculation. All values are
// rounded to two decimals.
type FeeBreakdown struct {
	Price float64 `json:"price"`
	Fee   float64 `json:"fee"`
	Tax   float64 `json:"tax"`
	Tip   float64 `json:"tip"`
	Total float64 `json:"total"`
}

// RoundMoney rounds a monetary value to two decimals, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateFees computes the platform fee, VAT and total for a job.
//
// The fee package selects the formula applied on top of the base wash price:
// custom uses the flat amount from the setting, package1 takes a percentage
// of the base plus a flat component, package2 charges no platform fee. A nil
// or inactive setting falls back to package2 semantics. VAT applies to price
// plus fee; the tip is added after tax.
func CalculateFees(basePrice float64, feePackage string, setting *models.FeeSetting, vatRate, tip float64) (FeeBreakdown, error) {
	if basePrice <= 0 {
		return FeeBreakdown{}, fmt.Errorf("base price must be positive, got %.2f", basePrice)
	}
	if tip < 0 {
		return FeeBreakdown{}, fmt.Errorf("tip cannot be negative")
	}
	if vatRate < 0 || vatRate >= 1 {
		return FeeBreakdown{}, fmt.Errorf("vat rate out of range: %.2f", vatRate)
	}

	price := RoundMoney(basePrice)

	var fee float64
	if setting != nil && setting.Active {
		switch feePackage {
		case FeePackageCustom:
			fee = setting.Flat
		case FeePackageOne:
			fee = price*setting.Percent/100 + setting.Flat
		case FeePackageTwo:
			fee = 0
		default:
			return FeeBreakdown{}, fmt.Errorf("unknown fee package: %s", feePackage)
		}
	}
	fee = RoundMoney(fee)

	tax := RoundMoney((price + fee) * vatRate)
	tip = RoundMoney(tip)
	total := RoundMoney(price + fee + tax + tip)

	return FeeBreakdown{
		Price: price,
		Fee:   fee,
		Tax:   tax,
		Tip:   tip,
		Total: total,
	}, nil
}

// CompanyNet is the amount credited to the company when a job completes:
// the base price minus the platform fee. VAT and tip pass through untouched;
// the tip is paid out with the net.
func CompanyNet(b FeeBreakdown) float64 {
	return RoundMoney(b.Price - b.Fee + b.Tip)
}
