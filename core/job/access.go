package job

import "github.com/trezcool/fieldpro/core/user"

// CanView reports whether actor may see j.
// Admins see every job, business users the jobs of their business, employees the jobs of
// their business and the ones assigned to them.
func CanView(actor user.User, j Job) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.BusinessID != "" && j.BusinessID == actor.BusinessID:
		return true
	case actor.IsEmployee():
		return j.EmployeeID == actor.ID
	default:
		return false
	}
}

// CanEdit follows visibility.
func CanEdit(actor user.User, j Job) bool {
	return CanView(actor, j)
}

func CanDelete(actor user.User, j Job) bool {
	return !actor.IsEmployee() && CanView(actor, j)
}

// CanCreate reports whether actor may create jobs for businessID.
func CanCreate(actor user.User, businessID string) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsBusiness():
		return actor.BusinessID != "" && actor.BusinessID == businessID
	default:
		return false
	}
}

// ScopeFilter restricts qf to the jobs actor can see.
func ScopeFilter(actor user.User, qf *QueryFilter) {
	qf.ScopeBusinessID, qf.ScopeEmployeeID = "", ""
	if actor.IsAdmin() {
		return
	}
	qf.ScopeBusinessID = actor.BusinessID
	// always set so a user without business is never left unscoped
	qf.ScopeEmployeeID = actor.ID
}
