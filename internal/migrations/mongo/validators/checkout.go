package validators

import "go.mongodb.org/mongo-driver/bson"

var CheckoutValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"room_number",
			"requested_date",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"requested_date": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"REQUESTED", "COMPLETED"},
			},

			"refund": nonNegativeAmount,
		},
	},
}
