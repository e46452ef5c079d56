package model

// Role is the closed set of staff roles known to the booking engine.
type Role string

const (
	RolePhysician    Role = "physician"
	RoleNurse        Role = "nurse"
	RoleTherapist    Role = "therapist"
	RoleTechnician   Role = "technician"
	RoleAssistant    Role = "assistant"
	RoleReceptionist Role = "receptionist"
)

var clinicalRoles = map[Role]bool{
	RolePhysician:  true,
	RoleNurse:      true,
	RoleTherapist:  true,
	RoleTechnician: true,
	RoleAssistant:  true,
}

// substitutes lists, for each role, the required roles it can stand in for
// in addition to its own.
var substitutes = map[Role][]Role{
	RolePhysician: {RoleNurse, RoleAssistant},
	RoleNurse:     {RoleAssistant},
}

func (r Role) Valid() bool {
	return clinicalRoles[r] || r == RoleReceptionist
}

// Satisfies reports whether staff holding r may deliver a service that
// requires the given role. An empty requirement accepts any clinical role.
func (r Role) Satisfies(required Role) bool {
	if required == "" {
		return clinicalRoles[r]
	}
	if r == required {
		return true
	}
	for _, s := range substitutes[r] {
		if s == required {
			return true
		}
	}
	return false
}
