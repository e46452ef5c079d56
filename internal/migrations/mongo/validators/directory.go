package validators

import "go.mongodb.org/mongo-driver/bson"

var idField = bson.M{
	"bsonType":  "string",
	"minLength": 1,
	"maxLength": 64,
}

var roles = []string{"physician", "nurse", "therapist", "technician", "assistant", "receptionist"}

var StaffValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "role", "location_id", "active"},
		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"role": bson.M{
				"enum": roles,
			},
			"location_id": idField,
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}

var LocationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name"},
		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"time_zone": bson.M{
				"bsonType": "string",
			},
		},
	},
}

var ServiceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "base_duration_min", "active"},
		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"base_duration_min": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  5,
				"maximum":  480,
			},
			"required_role": bson.M{
				"enum": append([]string{""}, roles...),
			},
			"assigned_rooms": bson.M{
				"bsonType": []string{"array", "null"},
				"items":    idField,
			},
			"assigned_devices": bson.M{
				"bsonType": []string{"array", "null"},
				"items":    idField,
			},
			"room_quantity_required": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"device_quantity_required": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"requires_consent": bson.M{
				"bsonType": "bool",
			},
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
