package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingAttemptValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"facility",
			"slot_start",
			"slot_end",
			"customer_name",
			"customer_phone",
			"status",
			"requested_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"facility": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"slot_start": bson.M{
				"bsonType": "date",
			},

			"slot_end": bson.M{
				"bsonType": "date",
			},

			"customer_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"customer_phone": bson.M{
				"bsonType": "string",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PENDING",
					"CONFIRMED",
					"FAILED",
				},
			},

			"external_ref": bson.M{
				"bsonType": "string",
			},

			"error": bson.M{
				"bsonType": "string",
			},

			"requested_at": bson.M{
				"bsonType": "date",
			},

			"completed_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
