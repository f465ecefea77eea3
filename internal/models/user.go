package models

// Role names issued in access tokens.
const (
	RoleApplicant = "applicant"
	RoleEmployer  = "employer"
	RoleAdmin     = "admin"
)

// User is the minimal principal record referenced by applications and notifications.
// Registration and credentials live outside this service.
type User struct {
	BaseModel

	Name     string `gorm:"type:varchar(255)" json:"name"`
	Email    string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role     string `gorm:"type:varchar(32);not null;index" json:"role"`
	Company  string `gorm:"type:varchar(255)" json:"company,omitempty"`
	Phone    string `gorm:"type:varchar(64)" json:"phone,omitempty"`
	Location string `gorm:"type:varchar(255)" json:"location,omitempty"`
}

// IsValidRole reports whether role is one of the issued role names.
func IsValidRole(role string) bool {
	switch role {
	case RoleApplicant, RoleEmployer, RoleAdmin:
		return true
	default:
		return false
	}
}

// RecipientID lets a user be addressed directly as a notification recipient.
func (u *User) RecipientID() string {
	if u == nil {
		return ""
	}
	return u.ID
}
