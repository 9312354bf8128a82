package user

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/fieldpro/core"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleBusiness = "business"
	RoleEmployee = "employee"
)

var (
	AllRoles = []string{RoleAdmin, RoleBusiness, RoleEmployee}

	rolePriorities = map[string]int{
		RoleAdmin:    30,
		RoleBusiness: 20,
		RoleEmployee: 10,
	}

	Roles = []Role{
		{Name: "Employee", Value: RoleEmployee},
		{Name: "Business", Value: RoleBusiness},
		{Name: "Admin", Value: RoleAdmin},
	}

	// OrderingFields are the fields users can be ordered by.
	OrderingFields = []string{"name", "email", "role", "is_active", "created_at", "last_login"}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	BusinessID    string    `json:"business_id"`
	Permissions   []string  `json:"permissions"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
	LastLogin     time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u User) IsBusiness() bool { return u.Role == RoleBusiness }
func (u User) IsEmployee() bool { return u.Role == RoleEmployee }

// Person identifies the user in logs.
func (u User) Person() core.Person {
	return core.Person{ID: u.ID, Name: u.Name, Email: u.Email}
}

// CanManage reports whether u may view and modify other.
// Admins manage everyone, business users manage the employees of their business, everyone manages themselves.
func (u User) CanManage(other User) bool {
	switch {
	case u.ID == other.ID, u.IsAdmin():
		return true
	case u.IsBusiness():
		return u.BusinessID != "" && other.BusinessID == u.BusinessID && other.IsEmployee()
	default:
		return false
	}
}

// CanGrant reports whether u may give `role` within `businessID` to a user.
// Nobody can grant a role above their own and business users are limited to their business.
func (u User) CanGrant(role, businessID string) bool {
	if RolePriority(role) > RolePriority(u.Role) {
		return false
	}
	switch {
	case u.IsAdmin():
		return true
	case u.IsBusiness():
		return role == RoleEmployee && businessID == u.BusinessID
	default:
		return false
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	Role            string   `json:"role" validate:"required,oneof=admin business employee"`
	BusinessID      string   `json:"business_id"`
	Permissions     []string `json:"permissions"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.BusinessID = core.CleanString(nu.BusinessID)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Role            string   `json:"role" validate:"omitempty,oneof=admin business employee"`
	BusinessID      *string  `json:"business_id"`
	Permissions     []string `json:"permissions"`
	IsActive        *bool    `json:"is_active"`
	EmailVerified   *bool    `json:"email_verified"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if role := core.CleanString(uu.Role, true /* lower */); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

// ChangesPrivileges reports whether uu modifies fields only a manager may change.
func (uu *UpdateUser) ChangesPrivileges(origUsr User) bool {
	return uu.Role != origUsr.Role || uu.BusinessID != nil || uu.Permissions != nil || uu.IsActive != nil ||
		uu.EmailVerified != nil
}

// apply merges the provided fields into usr.
func (uu UpdateUser) apply(usr *User) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Role = uu.Role
	if uu.BusinessID != nil {
		usr.BusinessID = core.CleanString(*uu.BusinessID)
	}
	if uu.Permissions != nil {
		usr.Permissions = uu.Permissions
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.EmailVerified != nil {
		usr.EmailVerified = *uu.EmailVerified
	}
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search     string   `query:"search"`
	Roles      []string `query:"role"`
	BusinessID string   `query:"business_id"`
	IsActive   *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.BusinessID == "" && qf.IsActive == nil
}

// Clean also restricts the filter to active users unless IsActive was given.
func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.BusinessID = core.CleanString(qf.BusinessID)
	if qf.IsActive == nil {
		active := true
		qf.IsActive = &active
	}
}

// Match applies AND operation on available QueryFilter fields.
// Search does a case-insensitive match on one of User.Name or User.Email.
func (qf QueryFilter) Match(usr User) bool {
	if qf.Search != "" && !(core.ContainsFold(usr.Name, qf.Search) || core.ContainsFold(usr.Email, qf.Search)) {
		return false
	}
	if len(qf.Roles) > 0 && !core.StringIn(usr.Role, qf.Roles...) {
		return false
	}
	if qf.BusinessID != "" && usr.BusinessID != qf.BusinessID {
		return false
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	return true
}

// Sort orders users in place; defaults to newest first.
func Sort(users []User, orderings []core.DBOrdering) {
	orderings = core.AllowedOrderings(orderings, OrderingFields...)
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range orderings {
			c := compareField(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareField(a, b User, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return RolePriority(a.Role) - RolePriority(b.Role)
	case "is_active":
		return boolInt(a.IsActive) - boolInt(b.IsActive)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "last_login":
		return a.LastLogin.Compare(b.LastLogin)
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
