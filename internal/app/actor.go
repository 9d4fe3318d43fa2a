package app

import (
	"strings"

	"placement/internal/common"
	"placement/internal/domain/drive"
)

type Role string

const (
	RoleStudent Role = "student"
	RolePR      Role = "pr"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	switch role {
	case RoleStudent, RolePR, RoleStaff, RoleAdmin:
		return role, true
	}
	return "", false
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID     common.UUID
	Role       Role
	Department string
}

func (a Actor) CanApply() bool {
	return a.Role == RoleStudent || a.Role == RolePR
}

func (a Actor) CanPost() bool {
	return a.Role == RoleStaff || a.Role == RolePR || a.Role == RoleAdmin
}

// canManage reports whether a may run round and placement operations on d.
// Admins manage every drive, others only drives of their own department.
func (a Actor) canManage(d *drive.JobDrive) bool {
	if a.Role == RoleAdmin {
		return true
	}
	if !a.CanPost() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(a.Department), strings.TrimSpace(d.Department))
}

func authorizeManage(actor Actor, d *drive.JobDrive) error {
	if !actor.canManage(d) {
		return common.NewError(common.CodeForbidden, "drive belongs to another department", nil)
	}
	return nil
}

// VisibleDrive trims d for callers that cannot manage it: they see only their
// own application and placement, never other students' contact snapshots.
func (a Actor) VisibleDrive(d drive.JobDrive) drive.JobDrive {
	if a.canManage(&d) {
		return d
	}
	out := d
	out.Applications = []drive.Application{}
	for _, application := range d.Applications {
		if application.StudentID == a.UserID {
			out.Applications = append(out.Applications, application)
		}
	}
	out.PlacedStudents = []drive.PlacedStudent{}
	for _, placed := range d.PlacedStudents {
		if placed.StudentID == a.UserID {
			out.PlacedStudents = append(out.PlacedStudents, placed)
		}
	}
	return out
}
