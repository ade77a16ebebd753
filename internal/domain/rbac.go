package domain

// Role is the closed set of caller roles. Tokens carry the role as a string;
// anything outside this set simply has no permissions.
type Role string

const (
	RoleEnumerator Role = "ENUMERATOR"
	RoleScreener   Role = "SCREENER"
	RoleClinician  Role = "CLINICIAN"
	RoleAdmin      Role = "ADMIN"
	RolePatient    Role = "PATIENT"
)

// Capabilities. Routes declare exactly one of these; the permission map below
// is the single source of truth for who may call what.
const (
	CapHouseholdCreate    = "household:create"
	CapHouseholdEdit      = "household:edit"
	CapPeopleCreate       = "people:create"
	CapPeopleEdit         = "people:edit"
	CapSurveyWrite        = "survey:write"
	CapCampsViewAssigned  = "camps:view_assigned"
	CapDueViewAssigned    = "due:view_assigned"
	CapRemindersWrite     = "reminders:write"
	CapEncounterStart     = "encounter:start"
	CapEncounterSubmit    = "encounter:submit"
	CapVitalsWrite        = "vitals:write"
	CapTestsWrite         = "tests:write"
	CapTasksCreate        = "tasks:create"
	CapQueueView          = "queue:view"
	CapUnverifiedView     = "unverified:view"
	CapEncounterApprove   = "encounter:approve"
	CapEncounterReject    = "encounter:reject"
	CapAssessmentWrite    = "assessment:write"
	CapTasksClose         = "tasks:close"
	CapAdminManage        = "admin:manage"
	CapDashboardsView     = "dashboards:view"
	CapInventoryManage    = "inventory:manage"
	CapExportCSV          = "export:csv"
	CapCampsCreate        = "camps:create"
	CapVillagesManage     = "villages:manage"
	CapAssignmentsManage  = "assignments:manage"
	CapPatientViewSelf    = "patient:view_self"
	CapPatientTOTP        = "patient:totp"
	CapCampsViewVillage   = "camps:view_village"
)

var permissions = map[Role]map[string]struct{}{
	RoleEnumerator: set(
		CapHouseholdCreate, CapHouseholdEdit,
		CapPeopleCreate, CapPeopleEdit,
		CapSurveyWrite,
		CapCampsViewAssigned,
		CapDueViewAssigned,
		CapRemindersWrite,
	),
	RoleScreener: set(
		CapEncounterStart, CapEncounterSubmit,
		CapVitalsWrite, CapTestsWrite,
		CapTasksCreate,
		CapCampsViewAssigned,
	),
	RoleClinician: set(
		CapQueueView, CapUnverifiedView,
		CapEncounterApprove, CapEncounterReject,
		CapAssessmentWrite,
		CapTasksClose,
	),
	RoleAdmin: set(
		CapAdminManage, CapDashboardsView, CapInventoryManage, CapExportCSV,
		CapCampsCreate, CapVillagesManage, CapAssignmentsManage,
	),
	RolePatient: set(
		CapPatientViewSelf, CapPatientTOTP, CapCampsViewVillage,
	),
}

// HasPerm reports whether role may exercise cap. Unknown roles and unknown
// capabilities are both false; callers get the same answer either way.
func HasPerm(role Role, cap string) bool {
	caps, ok := permissions[role]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// Roles lists every declared role, for tests and admin tooling.
func Roles() []Role {
	return []Role{RoleEnumerator, RoleScreener, RoleClinician, RoleAdmin, RolePatient}
}

// Capabilities lists the capabilities granted to role.
func Capabilities(role Role) []string {
	caps := permissions[role]
	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	return out
}

func set(caps ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}
