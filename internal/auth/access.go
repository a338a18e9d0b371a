package auth

// Role is the account role stored in the profile.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Route names a protected area of the API.
type Route string

const (
	RouteDashboard Route = "dashboard"
	RouteStudents  Route = "students"
	RoutePurchases Route = "purchases"
	// RouteAttendance covers reading and recording attendance.
	RouteAttendance Route = "attendance"
	// RouteAttendanceAdmin covers editing, deleting and exporting attendance.
	RouteAttendanceAdmin Route = "attendance_admin"
)

var policy = map[Route][]Role{
	RouteDashboard:       {RoleAdmin, RoleStudent},
	RouteAttendance:      {RoleAdmin, RoleStudent},
	RouteStudents:        {RoleAdmin},
	RoutePurchases:       {RoleAdmin},
	RouteAttendanceAdmin: {RoleAdmin},
}

// CanAccess reports whether role may use route. Unknown routes and roles
// are denied.
func CanAccess(route Route, role Role) bool {
	for _, r := range policy[route] {
		if r == role {
			return true
		}
	}
	return false
}
