package models

import "github.com/google/uuid"

// ensureID fills a missing primary key before insert so rows get the same
// ids on postgres and on the sqlite test database.
func ensureID(id *uuid.UUID) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	return nil
}
