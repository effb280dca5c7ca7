package validators

import "go.mongodb.org/mongo-driver/bson"

var BillValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"room_number",
			"customer_id",
			"period",
			"water_units",
			"electric_units",
			"rent",
			"total",
			"due_date",
			"status",
			"overdue_days",
			"baseline_source",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"room_number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 16,
			},

			"customer_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"period": bson.M{
				"bsonType": "date",
			},

			"water_units":    nonNegativeAmount,
			"electric_units": nonNegativeAmount,
			"rent":           nonNegativeAmount,
			"service_fee":    nonNegativeAmount,
			"fine":           nonNegativeAmount,
			"total":          nonNegativeAmount,

			"due_date": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"UNPAID", "VERIFYING", "PAID"},
			},

			"overdue_days": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"baseline_source": bson.M{
				"bsonType": "string",
				"enum":     []string{"PREVIOUS_BILL", "SUPPLIED", "SUPPLIED_GAP"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
