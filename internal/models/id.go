package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joescharf/todoai/internal/errs"
)

var validationf = errs.Validationf

// NewID returns a new 24-hex-character identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidateID rejects identifiers that are not 24 hex characters.
func ValidateID(kind, id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return validationf("invalid %s id %q", kind, id)
	}
	return nil
}
