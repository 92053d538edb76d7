package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   primitive.ObjectID
	Role models.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// SystemActor is used by background jobs acting on behalf of the platform.
var SystemActor = Actor{Role: models.RoleAdmin}
