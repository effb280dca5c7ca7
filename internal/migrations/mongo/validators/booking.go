package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"room_number",
			"customer_id",
			"external_id",
			"checkin_date",
			"approval",
			"checkin_status",
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

			"checkin_date": bson.M{
				"bsonType": "date",
			},

			"checkout_date": bson.M{
				"bsonType": "date",
			},

			"approval": bson.M{
				"bsonType": "string",
				"enum":     []string{"PENDING", "APPROVED", "REJECTED"},
			},

			"checkin_status": bson.M{
				"bsonType": "string",
				"enum":     []string{"NOT_ARRIVED", "ARRIVED"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
