package validators

import "go.mongodb.org/mongo-driver/bson"

var SyncCycleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"trigger",
			"started_at",
			"outcome",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"trigger": bson.M{
				"bsonType": "string",
				"enum": []string{
					"SCHEDULED",
					"MANUAL",
					"REFRESH",
					"COMMAND",
				},
			},

			"dates": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"started_at": bson.M{
				"bsonType": "date",
			},

			"finished_at": bson.M{
				"bsonType": "date",
			},

			"outcome": bson.M{
				"bsonType": "string",
				"enum": []string{
					"RUNNING",
					"SUCCESS",
					"PARTIAL",
					"FAILED",
				},
			},

			"sources": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "object",
				},
			},

			"facts": bson.M{
				"bsonType": "int",
			},

			"mutations": bson.M{
				"bsonType": "int",
			},

			"applied": bson.M{
				"bsonType": "int",
			},

			"stale": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"error": bson.M{
				"bsonType": "string",
			},
		},
	},
}
