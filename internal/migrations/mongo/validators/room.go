package validators

import "go.mongodb.org/mongo-driver/bson"

var RoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"rent",
			"deposit",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 16,
				"pattern":   "^[A-Z0-9-]+$",
			},

			"size": bson.M{
				"bsonType":  "string",
				"maxLength": 32,
			},

			"rent":        nonNegativeAmount,
			"deposit":     nonNegativeAmount,
			"booking_fee": nonNegativeAmount,

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"AVAILABLE", "LOCKED"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var nonNegativeAmount = bson.M{
	"bsonType": "number",
	"minimum":  0,
}
