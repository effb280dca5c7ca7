// Package calculator holds the pure arithmetic of billing: consumption,
// costs, totals, fines and the calendar rules for periods and due dates.
// Amounts are computed in decimal and rounded to two places.
package calculator

import (
	"fmt"
	"smartdorm/pkg/config"
	"smartdorm/pkg/model"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const periodLayout = "2006-01"

type Readings struct {
	WaterBefore    float64
	WaterAfter     float64
	ElectricBefore float64
	ElectricAfter  float64
}

type Breakdown struct {
	WaterUnits    float64
	ElectricUnits float64
	Rent          float64
	ServiceFee    float64
	WaterCost     float64
	ElectricCost  float64
	Total         float64
}

// Compute prices one month of a room. A meter that reads lower than its
// baseline counts as zero consumption.
func Compute(r Readings, rent float64, rates config.RateCard) Breakdown {
	waterUnits := consumption(r.WaterBefore, r.WaterAfter)
	electricUnits := consumption(r.ElectricBefore, r.ElectricAfter)

	waterCost := waterUnits.Mul(decimal.NewFromFloat(rates.WaterPerUnit))
	electricCost := electricUnits.Mul(decimal.NewFromFloat(rates.ElectricPerUnit))
	rentD := decimal.NewFromFloat(rent)
	serviceD := decimal.NewFromFloat(rates.ServiceFee)

	return Breakdown{
		WaterUnits:    round(waterUnits),
		ElectricUnits: round(electricUnits),
		Rent:          round(rentD),
		ServiceFee:    round(serviceD),
		WaterCost:     round(waterCost),
		ElectricCost:  round(electricCost),
		Total:         round(rentD.Add(serviceD).Add(waterCost).Add(electricCost)),
	}
}

// TotalWithFine recomputes a bill's total from its base costs and fine.
func TotalWithFine(b *model.Bill, fine float64) float64 {
	return round(decimal.NewFromFloat(b.Rent).
		Add(decimal.NewFromFloat(b.ServiceFee)).
		Add(decimal.NewFromFloat(b.WaterCost)).
		Add(decimal.NewFromFloat(b.ElectricCost)).
		Add(decimal.NewFromFloat(fine)))
}

func Fine(days int, perDay float64) float64 {
	if days <= 0 {
		return 0
	}
	return round(decimal.NewFromInt(int64(days)).Mul(decimal.NewFromFloat(perDay)))
}

// PeriodOf returns the billing period holding t: the calendar month of t
// as seen in loc. Periods are stored as the first of the month at UTC
// midnight, the same calendar-key convention as due dates.
func PeriodOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod reads a period given as "YYYY-MM" or as an RFC3339 instant
// inside the month.
func ParsePeriod(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(periodLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("period %q is neither YYYY-MM nor RFC3339", s)
	}
	return PeriodOf(t, loc), nil
}

// MonthKey truncates a stored period key to the first of its month.
func MonthKey(period time.Time) time.Time {
	period = period.UTC()
	return time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func PreviousPeriod(period time.Time) time.Time {
	return MonthKey(period).AddDate(0, -1, 0)
}

// DueDate is dueDay of the month following period.
func DueDate(period time.Time, dueDay int) time.Time {
	next := MonthKey(period).AddDate(0, 1, 0)
	return time.Date(next.Year(), next.Month(), dueDay, 0, 0, 0, 0, time.UTC)
}

// OverdueDays counts whole calendar days from the due date to now, where
// "today" is taken in loc. Due dates are calendar dates stored at UTC
// midnight.
func OverdueDays(due, now time.Time, loc *time.Location) int {
	due = due.UTC()
	local := now.In(loc)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(dueDay).Hours() / 24)
}

// StartOfDay returns midnight of now's calendar day in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func consumption(before, after float64) decimal.Decimal {
	units := decimal.NewFromFloat(after).Sub(decimal.NewFromFloat(before))
	if units.IsNegative() {
		return decimal.Zero
	}
	return units
}

func round(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
