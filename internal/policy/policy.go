// Package policy decides whether an identity may perform an operation.
package policy

import "formsapi/internal/model"

// Operation names a checkpoint guarded by the policy.
type Operation string

const (
	CreateSchema   Operation = "create-schema"
	UpdateSchema   Operation = "update-schema"
	DeleteSchema   Operation = "delete-schema"
	ViewSchema     Operation = "view-schema"
	SubmitResponse Operation = "submit-response"
	ViewResponses  Operation = "view-responses"
	Export         Operation = "export"

	ListUsers  Operation = "list-users"
	ViewUser   Operation = "view-user"
	UpdateUser Operation = "update-user"
	ChangeRole Operation = "change-role"
	DeleteUser Operation = "delete-user"
)

// Identity is the caller as established by authentication. The zero value
// is anonymous.
type Identity struct {
	UserID string
	Email  string
	Role   model.Role
}

// Anonymous reports whether no user is attached.
func (i Identity) Anonymous() bool { return i.UserID == "" }

// Policy guards form operations. form is nil for CreateSchema and for
// listing.
type Policy interface {
	Allow(id Identity, op Operation, form *model.Form) bool
}

// UserPolicy guards account operations against a target user id.
type UserPolicy interface {
	AllowUser(id Identity, op Operation, targetID string) bool
}

// Func adapts a plain function to Policy.
type Func func(id Identity, op Operation, form *model.Form) bool

func (f Func) Allow(id Identity, op Operation, form *model.Form) bool { return f(id, op, form) }

// RolePolicy grants operations by role:
//
//	create, update, delete schema   admin
//	view schema, submit response    any authenticated user
//	view responses                  admin, editor
//	export                          admin, when the form allows it
type RolePolicy struct{}

var (
	_ Policy     = RolePolicy{}
	_ UserPolicy = RolePolicy{}
)

func (RolePolicy) Allow(id Identity, op Operation, form *model.Form) bool {
	if id.Anonymous() || !id.Role.Valid() {
		return false
	}
	switch op {
	case CreateSchema, UpdateSchema, DeleteSchema:
		return id.Role == model.RoleAdmin
	case ViewSchema, SubmitResponse:
		return true
	case ViewResponses:
		return id.Role == model.RoleAdmin || id.Role == model.RoleEditor
	case Export:
		return id.Role == model.RoleAdmin && form != nil && form.AllowExport
	}
	return false
}

func (RolePolicy) AllowUser(id Identity, op Operation, targetID string) bool {
	if id.Anonymous() || !id.Role.Valid() {
		return false
	}
	admin := id.Role == model.RoleAdmin
	switch op {
	case ListUsers:
		return admin || id.Role == model.RoleEditor
	case ViewUser, UpdateUser:
		return admin || id.UserID == targetID
	case ChangeRole, DeleteUser:
		return admin
	}
	return false
}
