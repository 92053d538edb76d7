package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Base is embedded inline by every stored document.
type Base struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
}

// GenIDIfEmpty assigns a fresh ObjectID before the first insert.
func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
}

// NewBase returns a Base with a fresh ObjectID.
func NewBase() Base {
	return Base{ID: primitive.NewObjectID()}
}
