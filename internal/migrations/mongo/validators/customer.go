package validators

import "go.mongodb.org/mongo-driver/bson"

var CustomerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"external_id",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"external_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"first_name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"last_name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			// E.164
			"phone": bson.M{
				"bsonType": "string",
				"pattern":  `^\+[1-9]\d{6,14}$`,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
