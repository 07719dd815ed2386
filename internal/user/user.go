package user

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies platform users. Practitioners and admins get product
// access without a subscription; patients pay.
type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

// DefaultLocale is the fallback for users without a stored locale preference.
const DefaultLocale = "en"

// User is the local identity record. Billing state lives in a separate
// subscription record keyed by the user id.
type User struct {
	ID               uuid.UUID
	Email            string
	Role             Role
	Locale           string // BCP-47 tag, e.g. "en", "nl", "de"
	StripeCustomerID string // empty until first checkout
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PreferredLocale returns the user's locale or the platform default.
func (u *User) PreferredLocale() string {
	if u.Locale == "" {
		return DefaultLocale
	}
	return u.Locale
}
