package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"service_id",
			"patient_id",
			"location_id",
			"staff_id",
			"resources",
			"start_time",
			"end_time",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"service_id":  idField,
			"patient_id":  idField,
			"location_id": idField,
			"staff_id":    idField,

			"room_ids": bson.M{
				"bsonType": "array",
				"items":    idField,
			},

			"device_ids": bson.M{
				"bsonType": "array",
				"items":    idField,
			},

			"resources": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"type", "id"},
					"properties": bson.M{
						"type": bson.M{
							"enum": []string{"staff", "room", "device"},
						},
						"id": idField,
					},
				},
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": []string{"scheduled", "confirmed", "in_progress", "completed", "cancelled", "no_show"},
			},

			"booking_type": bson.M{
				"enum": []string{"in_person", "telehealth", "home_visit"},
			},

			"consent_given": bson.M{
				"bsonType": "bool",
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"cancellation_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var ReservationLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at", "created_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 3,
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
			"fenced_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
