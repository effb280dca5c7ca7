package config

import (
	"fmt"
	"math"
)

// RateCard holds the tariffs in effect for newly issued bills. Unit rates
// and the service fee are copied onto each bill at creation; FinePerDay is
// read when the overdue pass runs.
type RateCard struct {
	WaterPerUnit    float64
	ElectricPerUnit float64
	ServiceFee      float64
	FinePerDay      float64
	DueDay          int
}

func (r RateCard) Validate() []string {
	var errors []string

	amounts := []struct {
		name  string
		value float64
	}{
		{"WaterPerUnit", r.WaterPerUnit},
		{"ElectricPerUnit", r.ElectricPerUnit},
		{"ServiceFee", r.ServiceFee},
		{"FinePerDay", r.FinePerDay},
	}
	for _, a := range amounts {
		if math.IsNaN(a.value) || math.IsInf(a.value, 0) || a.value < 0 {
			errors = append(errors, fmt.Sprintf("%s must be a finite non-negative amount, got: %v", a.name, a.value))
		}
	}

	// 28 keeps the due date inside every month.
	if r.DueDay < 1 || r.DueDay > 28 {
		errors = append(errors, fmt.Sprintf("DueDay must be between 1 and 28, got: %d", r.DueDay))
	}

	return errors
}
