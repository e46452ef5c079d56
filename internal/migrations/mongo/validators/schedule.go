package validators

import "go.mongodb.org/mongo-driver/bson"

var clockField = bson.M{
	"bsonType": "string",
	"pattern":  `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
}

var WeeklyScheduleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"staff_id",
			"valid_from",
			"is_active",
			"days",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"staff_id": idField,

			"valid_from": bson.M{
				"bsonType": "date",
			},

			"valid_to": bson.M{
				"bsonType": "date",
			},

			"is_active": bson.M{
				"bsonType": "bool",
			},

			"days": bson.M{
				"bsonType": []string{"array", "null"},
				"maxItems": 7,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"day", "is_working"},
					"properties": bson.M{
						"day": bson.M{
							"enum": []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"},
						},
						"is_working": bson.M{
							"bsonType": "bool",
						},
						"start_time":  clockField,
						"end_time":    clockField,
						"break_start": clockField,
						"break_end":   clockField,
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var AbsenceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"staff_id", "starts_at", "ends_at", "status", "created_at"},
		"properties": bson.M{
			"staff_id": idField,
			"starts_at": bson.M{
				"bsonType": "date",
			},
			"ends_at": bson.M{
				"bsonType": "date",
			},
			"reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},
			"status": bson.M{
				"enum": []string{"pending", "approved", "rejected", "cancelled"},
			},
			"decided_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
