package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"bill_id",
			"customer_id",
			"slip_url",
			"status",
			"submitted_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"bill_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"slip_url": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"SUBMITTED", "APPROVED", "REJECTED"},
			},

			"submitted_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
