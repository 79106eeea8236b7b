package models

import "github.com/google/uuid"

// assignID fills a missing primary key before insert. Postgres also defaults
// ids with gen_random_uuid(), but sqlite test databases do not.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
