package valueobject

import "github.com/google/uuid"

type Role string

const (
	RoleEmployer   Role = "employer"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleEmployer, RoleFreelancer, RoleAdmin:
		return true
	}
	return false
}

// Actor — пользователь, от имени которого выполняется операция.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Is сообщает, что действует именно этот пользователь.
func (a Actor) Is(userID uuid.UUID) bool {
	return a.ID != uuid.Nil && a.ID == userID
}
