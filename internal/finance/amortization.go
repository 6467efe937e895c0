package finance

type AmortizationRow struct {
	Month     int     `json:"month"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

type AmortizationYear struct {
	Year      int     `json:"year"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

type AmortizationSchedule struct {
	MonthlyPayment float64            `json:"monthlyPayment"`
	TotalInterest  float64            `json:"totalInterest"`
	TotalPaid      float64            `json:"totalPaid"`
	Months         []AmortizationRow  `json:"months"`
	Years          []AmortizationYear `json:"years"`
}

// Amortize returns one row per month. Values are unrounded; the final row
// absorbs floating point drift so the closing balance is exactly zero.
func Amortize(principal, annualRate float64, months int) []AmortizationRow {
	if principal <= 0 || months <= 0 {
		return nil
	}
	payment := MonthlyPayment(principal, annualRate, months)
	r := annualRate / 12 / 100

	rows := make([]AmortizationRow, 0, months)
	balance := principal
	for m := 1; m <= months; m++ {
		interest := balance * r
		principalPart := payment - interest
		pay := payment
		if m == months || principalPart > balance {
			principalPart = balance
			pay = principalPart + interest
		}
		balance -= principalPart
		if m == months {
			balance = 0
		}
		rows = append(rows, AmortizationRow{
			Month:     m,
			Payment:   pay,
			Principal: principalPart,
			Interest:  interest,
			Balance:   balance,
		})
	}
	return rows
}

// Schedule builds the rounded monthly schedule with yearly totals.
func Schedule(principal, annualRate float64, months int) AmortizationSchedule {
	rows := Amortize(principal, annualRate, months)
	out := AmortizationSchedule{
		MonthlyPayment: Round2(MonthlyPayment(principal, annualRate, months)),
		Months:         make([]AmortizationRow, 0, len(rows)),
	}

	var year AmortizationYear
	for _, row := range rows {
		out.TotalInterest += row.Interest
		out.TotalPaid += row.Payment

		year.Principal += row.Principal
		year.Interest += row.Interest
		year.Balance = row.Balance
		if row.Month%12 == 0 || row.Month == len(rows) {
			year.Year = (row.Month + 11) / 12
			out.Years = append(out.Years, AmortizationYear{
				Year:      year.Year,
				Principal: Round2(year.Principal),
				Interest:  Round2(year.Interest),
				Balance:   Round2(year.Balance),
			})
			year = AmortizationYear{}
		}

		out.Months = append(out.Months, AmortizationRow{
			Month:     row.Month,
			Payment:   Round2(row.Payment),
			Principal: Round2(row.Principal),
			Interest:  Round2(row.Interest),
			Balance:   Round2(row.Balance),
		})
	}
	out.TotalInterest = Round2(out.TotalInterest)
	out.TotalPaid = Round2(out.TotalPaid)
	return out
}
