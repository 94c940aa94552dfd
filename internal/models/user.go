// server/internal/models/user.go
package models

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleAmbulanceDriver Role = "ambulance_driver"
	RoleFireDriver      Role = "fire_driver"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleAmbulanceDriver, RoleFireDriver:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsDriver reports whether the role operates a vehicle.
func (r Role) IsDriver() bool {
	return r == RoleAmbulanceDriver || r == RoleFireDriver
}

// AlertType is the alert type a driver role serves. Empty for non-driver roles.
func (r Role) AlertType() AlertType {
	switch r {
	case RoleAmbulanceDriver:
		return AlertTypeAmbulance
	case RoleFireDriver:
		return AlertTypeFire
	}
	return ""
}

// HomeRoute is the console a user lands on after login.
func (r Role) HomeRoute() (string, error) {
	switch r {
	case RoleAdmin:
		return "/admin", nil
	case RoleAmbulanceDriver:
		return "/ambulance", nil
	case RoleFireDriver:
		return "/fire", nil
	}
	return "", fmt.Errorf("unknown role %q", r)
}

// User struct matches the document in the users collection.
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Email       string    `bson:"email" json:"email"`
	Name        string    `bson:"name" json:"name"`
	FirstName   string    `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName    string    `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Password    string    `bson:"password" json:"-"`
	Role        Role      `bson:"role" json:"role"`
	PhotoURL    string    `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Mobile      string    `bson:"mobile,omitempty" json:"mobile,omitempty"`
	NumberPlate string    `bson:"numberPlate,omitempty" json:"numberPlate,omitempty"`
	Area        string    `bson:"area,omitempty" json:"area,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// DisplayName picks the best human label for the profile.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.FirstName != "" || u.LastName != "":
		if u.FirstName != "" && u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName + u.LastName
	case u.Email != "":
		return u.Email
	}
	return "Unnamed User"
}
