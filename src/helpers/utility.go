package helpers

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a new random document id.
func GenerateUUID() string {
	return uuid.New().String()
}
