package validators

import "go.mongodb.org/mongo-driver/bson"

var LedgerEntryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"facility",
			"slot_start",
			"slot_end",
			"status",
			"source_of_truth",
			"last_synced_at",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"facility": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"sport": bson.M{
				"bsonType": "string",
			},

			"court": bson.M{
				"bsonType": "string",
			},

			"slot_start": bson.M{
				"bsonType": "date",
			},

			"slot_end": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"AVAILABLE",
					"BOOKED",
					"CANCELLED",
					"CONFLICT",
				},
			},

			"source_of_truth": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PLAYO",
					"HUDLE",
					"BOTH",
				},
			},

			"external_ids": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "string",
				},
			},

			"last_synced_at": bson.M{
				"bsonType": "date",
			},

			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
