// Package finance holds the closed-form investment calculators used by saved
// analyses: loan payments, amortization, rental returns, flips and wholesale offers.
package finance

import (
	"errors"
	"fmt"
	"math"
)

type AnalysisType string

const (
	TypeRental    AnalysisType = "rental"
	TypeFlip      AnalysisType = "flip"
	TypeWholesale AnalysisType = "wholesale"
)

func (t AnalysisType) Valid() bool {
	switch t {
	case TypeRental, TypeFlip, TypeWholesale:
		return true
	}
	return false
}

const defaultWholesaleDiscount = 70

// Inputs are the user-supplied numbers of an analysis. Percentages are 0..100.
type Inputs struct {
	PurchasePrice       float64 `json:"purchasePrice"`
	DownPaymentPercent  float64 `json:"downPaymentPercent"`
	InterestRate        float64 `json:"interestRate"`
	LoanTermYears       int     `json:"loanTermYears"`
	ClosingCosts        float64 `json:"closingCosts"`
	RehabCosts          float64 `json:"rehabCosts"`
	MonthlyRent         float64 `json:"monthlyRent"`
	OtherMonthlyIncome  float64 `json:"otherMonthlyIncome"`
	VacancyRate         float64 `json:"vacancyRate"`
	PropertyTaxAnnual   float64 `json:"propertyTaxAnnual"`
	InsuranceAnnual     float64 `json:"insuranceAnnual"`
	MaintenancePercent  float64 `json:"maintenancePercent"`
	ManagementPercent   float64 `json:"managementPercent"`
	HOAMonthly          float64 `json:"hoaMonthly"`
	UtilitiesMonthly    float64 `json:"utilitiesMonthly"`
	AfterRepairValue    float64 `json:"afterRepairValue"`
	HoldingMonths       int     `json:"holdingMonths"`
	SellingCostsPercent float64 `json:"sellingCostsPercent"`
	WholesaleDiscount   float64 `json:"wholesaleDiscount"`
}

type Results struct {
	LoanAmount      float64 `json:"loanAmount"`
	DownPayment     float64 `json:"downPayment"`
	MonthlyPayment  float64 `json:"monthlyPayment"`
	TotalInterest   float64 `json:"totalInterest"`
	TotalInvestment float64 `json:"totalInvestment"`

	GrossMonthlyIncome       float64 `json:"grossMonthlyIncome"`
	VacancyLoss              float64 `json:"vacancyLoss"`
	EffectiveMonthlyIncome   float64 `json:"effectiveMonthlyIncome"`
	MonthlyOperatingExpenses float64 `json:"monthlyOperatingExpenses"`
	NetOperatingIncome       float64 `json:"netOperatingIncome"`
	MonthlyCashFlow          float64 `json:"monthlyCashFlow"`
	AnnualCashFlow           float64 `json:"annualCashFlow"`
	CapRate                  float64 `json:"capRate"`
	CashOnCash               float64 `json:"cashOnCash"`
	DSCR                     float64 `json:"dscr"`
	GRM                      float64 `json:"grm"`
	MeetsOnePercentRule      bool    `json:"meetsOnePercentRule"`

	HoldingCosts float64 `json:"holdingCosts"`
	SellingCosts float64 `json:"sellingCosts"`
	NetProfit    float64 `json:"netProfit"`

	MaxAllowableOffer float64 `json:"maxAllowableOffer"`
	AssignmentFee     float64 `json:"assignmentFee"`

	ROI float64 `json:"roi"`
}

var ErrInvalidInputs = errors.New("invalid analysis inputs")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInputs, fmt.Sprintf(format, args...))
}

// Validate checks the inputs required by the analysis type.
func (in Inputs) Validate(t AnalysisType) error {
	if !t.Valid() {
		return invalid("unknown analysis type %q", t)
	}
	if in.PurchasePrice <= 0 {
		return invalid("purchasePrice must be positive")
	}
	percents := map[string]float64{
		"downPaymentPercent":  in.DownPaymentPercent,
		"interestRate":        in.InterestRate,
		"vacancyRate":         in.VacancyRate,
		"maintenancePercent":  in.MaintenancePercent,
		"managementPercent":   in.ManagementPercent,
		"sellingCostsPercent": in.SellingCostsPercent,
		"wholesaleDiscount":   in.WholesaleDiscount,
	}
	for name, v := range percents {
		if v < 0 || v > 100 {
			return invalid("%s must be between 0 and 100", name)
		}
	}
	if in.LoanTermYears < 0 || in.HoldingMonths < 0 {
		return invalid("loanTermYears and holdingMonths cannot be negative")
	}
	negatives := []float64{in.ClosingCosts, in.RehabCosts, in.MonthlyRent, in.OtherMonthlyIncome,
		in.PropertyTaxAnnual, in.InsuranceAnnual, in.HOAMonthly, in.UtilitiesMonthly, in.AfterRepairValue}
	for _, v := range negatives {
		if v < 0 {
			return invalid("amounts cannot be negative")
		}
	}
	if (t == TypeFlip || t == TypeWholesale) && in.AfterRepairValue <= 0 {
		return invalid("afterRepairValue is required for %s analysis", t)
	}
	return nil
}

// Calculate validates the inputs and computes every metric for the analysis type.
func Calculate(t AnalysisType, in Inputs) (Results, error) {
	if err := in.Validate(t); err != nil {
		return Results{}, err
	}

	var r Results
	r.DownPayment = in.PurchasePrice * in.DownPaymentPercent / 100
	r.LoanAmount = in.PurchasePrice - r.DownPayment
	months := in.LoanTermYears * 12
	r.MonthlyPayment = MonthlyPayment(r.LoanAmount, in.InterestRate, months)
	if months > 0 && r.LoanAmount > 0 {
		r.TotalInterest = r.MonthlyPayment*float64(months) - r.LoanAmount
	}
	r.TotalInvestment = r.DownPayment + in.ClosingCosts + in.RehabCosts

	switch t {
	case TypeRental:
		rental(&r, in)
	case TypeFlip:
		flip(&r, in)
	case TypeWholesale:
		wholesale(&r, in)
	}
	return r.rounded(), nil
}

func rental(r *Results, in Inputs) {
	gross := in.MonthlyRent + in.OtherMonthlyIncome
	vacancy := gross * in.VacancyRate / 100
	effective := gross - vacancy
	opex := in.PropertyTaxAnnual/12 + in.InsuranceAnnual/12 +
		gross*in.MaintenancePercent/100 + effective*in.ManagementPercent/100 +
		in.HOAMonthly + in.UtilitiesMonthly

	r.GrossMonthlyIncome = gross
	r.VacancyLoss = vacancy
	r.EffectiveMonthlyIncome = effective
	r.MonthlyOperatingExpenses = opex
	r.NetOperatingIncome = (effective - opex) * 12
	r.MonthlyCashFlow = effective - opex - r.MonthlyPayment
	r.AnnualCashFlow = r.MonthlyCashFlow * 12
	r.CapRate = ratio(r.NetOperatingIncome, in.PurchasePrice) * 100
	r.CashOnCash = ratio(r.AnnualCashFlow, r.TotalInvestment) * 100
	r.DSCR = ratio(r.NetOperatingIncome, r.MonthlyPayment*12)
	r.GRM = ratio(in.PurchasePrice, gross*12)
	r.MeetsOnePercentRule = gross > 0 && gross >= (in.PurchasePrice+in.RehabCosts)*0.01

	principal := FirstYearPrincipal(r.LoanAmount, in.InterestRate, in.LoanTermYears*12)
	r.ROI = ratio(r.AnnualCashFlow+principal, r.TotalInvestment) * 100
}

func flip(r *Results, in Inputs) {
	monthlyCarry := r.MonthlyPayment + in.PropertyTaxAnnual/12 + in.InsuranceAnnual/12 + in.UtilitiesMonthly
	r.HoldingCosts = monthlyCarry * float64(in.HoldingMonths)
	r.SellingCosts = in.AfterRepairValue * in.SellingCostsPercent / 100
	r.NetProfit = in.AfterRepairValue - in.PurchasePrice - in.RehabCosts - in.ClosingCosts - r.HoldingCosts - r.SellingCosts
	r.ROI = ratio(r.NetProfit, r.TotalInvestment) * 100
}

func wholesale(r *Results, in Inputs) {
	discount := in.WholesaleDiscount
	if discount == 0 {
		discount = defaultWholesaleDiscount
	}
	r.MaxAllowableOffer = in.AfterRepairValue*discount/100 - in.RehabCosts
	r.AssignmentFee = r.MaxAllowableOffer - in.PurchasePrice
	r.ROI = ratio(r.AssignmentFee, in.PurchasePrice) * 100
}

// MonthlyPayment is the fixed payment of a fully amortizing loan.
// annualRate is a percentage; months <= 0 or principal <= 0 yields 0.
func MonthlyPayment(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 12 / 100
	if r == 0 {
		return principal / float64(months)
	}
	return principal * r / (1 - math.Pow(1+r, -float64(months)))
}

// FirstYearPrincipal is the principal repaid over the first 12 payments.
func FirstYearPrincipal(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	schedule := Amortize(principal, annualRate, months)
	var paid float64
	for i := 0; i < len(schedule) && i < 12; i++ {
		paid += schedule[i].Principal
	}
	return paid
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (r Results) rounded() Results {
	for _, f := range []*float64{
		&r.LoanAmount, &r.DownPayment, &r.MonthlyPayment, &r.TotalInterest, &r.TotalInvestment,
		&r.GrossMonthlyIncome, &r.VacancyLoss, &r.EffectiveMonthlyIncome, &r.MonthlyOperatingExpenses,
		&r.NetOperatingIncome, &r.MonthlyCashFlow, &r.AnnualCashFlow, &r.CapRate, &r.CashOnCash,
		&r.DSCR, &r.GRM, &r.HoldingCosts, &r.SellingCosts, &r.NetProfit, &r.MaxAllowableOffer,
		&r.AssignmentFee, &r.ROI,
	} {
		*f = Round2(*f)
	}
	return r
}
