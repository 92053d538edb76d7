package models

import (
	"time"
)

// Role is the marketplace role of a user.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// FarmDetails holds farm metadata; only set for farmers.
type FarmDetails struct {
	FarmName string   `bson:"farm_name" json:"farmName"`
	Location string   `bson:"location" json:"location"`
	FarmSize float64  `bson:"farm_size" json:"farmSize"`
	Crops    []string `bson:"crops,omitempty" json:"crops,omitempty"`
}

// User represents a marketplace account.
type User struct {
	Base         `bson:",inline"`
	Name         string       `bson:"name" json:"name"`
	Email        string       `bson:"email" json:"email"`
	PasswordHash string       `bson:"password" json:"-"`
	Phone        string       `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string       `bson:"address,omitempty" json:"address,omitempty"`
	Role         Role         `bson:"role" json:"role"`
	Verified     bool         `bson:"verified" json:"verified"`
	Farm         *FarmDetails `bson:"farm,omitempty" json:"farm,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func ValidRole(r Role) bool {
	switch r {
	case RoleFarmer, RoleCustomer, RoleAdmin:
		return true
	}
	return false
}
