package model

import "time"

const (
	BillUnpaid    = "UNPAID"
	BillVerifying = "VERIFYING"
	BillPaid      = "PAID"

	BaselinePreviousBill = "PREVIOUS_BILL"
	BaselineSupplied     = "SUPPLIED"
	BaselineSuppliedGap  = "SUPPLIED_GAP"
)

// Bill is a monthly statement for one room. Rates and rent are snapshotted
// at issue time; only Fine, Total and the overdue bookkeeping change later.
type Bill struct {
	ID                  string     `json:"id" bson:"_id,omitempty"`
	RoomNumber          string     `json:"room_number" bson:"room_number"`
	CustomerID          string     `json:"customer_id" bson:"customer_id"`
	ExternalID          string     `json:"external_id" bson:"external_id"`
	Period              time.Time  `json:"period" bson:"period"`
	WaterBefore         float64    `json:"water_before" bson:"water_before"`
	WaterAfter          float64    `json:"water_after" bson:"water_after"`
	ElectricBefore      float64    `json:"electric_before" bson:"electric_before"`
	ElectricAfter       float64    `json:"electric_after" bson:"electric_after"`
	WaterUnits          float64    `json:"water_units" bson:"water_units"`
	ElectricUnits       float64    `json:"electric_units" bson:"electric_units"`
	WaterRate           float64    `json:"water_rate" bson:"water_rate"`
	ElectricRate        float64    `json:"electric_rate" bson:"electric_rate"`
	Rent                float64    `json:"rent" bson:"rent"`
	ServiceFee          float64    `json:"service_fee" bson:"service_fee"`
	WaterCost           float64    `json:"water_cost" bson:"water_cost"`
	ElectricCost        float64    `json:"electric_cost" bson:"electric_cost"`
	Fine                float64    `json:"fine" bson:"fine"`
	Total               float64    `json:"total" bson:"total"`
	DueDate             time.Time  `json:"due_date" bson:"due_date"`
	Status              string     `json:"status" bson:"status"`
	OverdueDays         int        `json:"overdue_days" bson:"overdue_days"`
	LastOverdueNotifyAt *time.Time `json:"last_overdue_notify_at,omitempty" bson:"last_overdue_notify_at"`
	BaselineSource      string     `json:"baseline_source" bson:"baseline_source"`
	PaidAt              *time.Time `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" bson:"updated_at"`
}

type BillFilter struct {
	Status     string
	RoomNumber string
	CustomerID string
	ExternalID string
	Period     *time.Time
}

type BillRequest struct {
	RoomNumber     string    `json:"room_number" validate:"required,room_number"`
	// Period is "YYYY-MM" or an RFC3339 instant inside the month, read in
	// the dormitory time zone.
	Period         string    `json:"period" validate:"required"`
	WaterAfter     float64   `json:"water_after" validate:"finite,gte=0"`
	ElectricAfter  float64   `json:"electric_after" validate:"finite,gte=0"`
	WaterBefore    *float64  `json:"water_before,omitempty" validate:"omitempty,finite,gte=0"`
	ElectricBefore *float64  `json:"electric_before,omitempty" validate:"omitempty,finite,gte=0"`
}

type OverdueUpdate struct {
	Days       int
	Fine       float64
	Total      float64
	NotifiedAt time.Time
}
