package models

import (
	"time"

	"github.com/google/uuid"
)

/*
    Column     |          Type          | Nullable | Default
---------------+------------------------+----------+---------
 id            | uuid                   | not null |
 github_handle | character varying(39)  | not null |
 name          | character varying(256) | not null |
 created_at    | timestamptz            | not null | now()
 updated_at    | timestamptz            | not null | now()
Indexes: UNIQUE (github_handle)
*/

// User is an extension author. GitHubHandle is always lower case.
type User struct {
	ID           uuid.UUID `db:"id"`
	GitHubHandle string    `db:"github_handle"`
	Name         string    `db:"name"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
