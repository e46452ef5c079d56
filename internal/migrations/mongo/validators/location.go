package validators

import "go.mongodb.org/mongo-driver/bson"

var LocationHoursValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"location_id", "rrule", "duration_min", "created_at"},
		"properties": bson.M{
			"location_id": idField,
			"rrule": bson.M{
				"bsonType":  "string",
				"minLength": 10,
				"maxLength": 500,
			},
			"start_time": clockField,
			"duration_min": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1440,
			},
			"time_zone": bson.M{
				"bsonType": "string",
			},
			"label": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},
		},
	},
}

var LocationClosureValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"location_id", "starts_at", "ends_at", "created_at"},
		"properties": bson.M{
			"location_id": idField,
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
		},
	},
}
