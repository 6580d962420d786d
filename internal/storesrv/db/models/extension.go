package models

import (
	"time"

	"github.com/google/uuid"
	ids "github.com/vicinaehq/backend/internal/common/uuid"
)

/*
     Column     |           Type           | Nullable |      Default
----------------+--------------------------+----------+-------------------
 id             | uuid                     | not null |
 author_id      | uuid                     | not null |
 name           | character varying(128)   | not null |
 title          | character varying(128)   | not null |
 description    | text                     | not null | ''
 api_version    | character varying(64)    | not null |
 storage_key    | text                     | not null |
 checksum       | character(64)            | not null |
 icon_light     | text                     |          |
 icon_dark      | text                     |          |
 readme_key     | text                     |          |
 download_count | bigint                   | not null | 0
 trending       | boolean                  | not null | false
 kill_listed_at | timestamptz              |          |
 created_at     | timestamptz              | not null | now()
 updated_at     | timestamptz              | not null | now()
Indexes: UNIQUE (author_id, name)
*/

// ExtensionContent is everything derived from the published archive. A republish replaces it wholesale.
type ExtensionContent struct {
	Title       string    `db:"title"`
	Description string    `db:"description"`
	APIVersion  string    `db:"api_version"`
	StorageKey  string    `db:"storage_key"`
	Checksum    string    `db:"checksum"`
	IconLight   *string   `db:"icon_light"`
	IconDark    *string   `db:"icon_dark"`
	ReadmeKey   *string   `db:"readme_key"`
	CategoryIDs []string  `db:"-"`
	PlatformIDs []string  `db:"-"`
	Commands    []Command `db:"-"`
}

type Extension struct {
	ID            uuid.UUID  `db:"id"`
	AuthorID      uuid.UUID  `db:"author_id"`
	Name          string     `db:"name"`
	DownloadCount int64      `db:"download_count"`
	Trending      bool       `db:"trending"`
	KillListedAt  *time.Time `db:"kill_listed_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	ExtensionContent

	Author     *User      `db:"-"`
	Categories []Category `db:"-"`
}

// NewExtension builds a never published extension with its insert defaults.
func NewExtension(authorID uuid.UUID, name string, content ExtensionContent, now time.Time) *Extension {
	e := &Extension{
		ID:        ids.New(),
		AuthorID:  authorID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.ExtensionContent = content
	e.ExtensionContent.Commands = bindCommands(e.ID, content.Commands)
	return e
}

// Republish replaces the content of an existing extension. Identity, download count,
// trending flag and kill list state are left untouched.
func (e *Extension) Republish(content ExtensionContent, now time.Time) {
	e.ExtensionContent = content
	e.ExtensionContent.Commands = bindCommands(e.ID, content.Commands)
	e.UpdatedAt = now
}

// IsNew reports whether the extension has only been published once.
func (e *Extension) IsNew() bool {
	return e.CreatedAt.Equal(e.UpdatedAt)
}

func (e *Extension) IsKillListed() bool {
	return e.KillListedAt != nil
}

func bindCommands(extensionID uuid.UUID, commands []Command) []Command {
	out := make([]Command, len(commands))
	for i, c := range commands {
		c.ID = ids.New()
		c.ExtensionID = extensionID
		c.Position = i
		out[i] = c
	}
	return out
}

/*
       Column        |          Type          | Nullable | Default
---------------------+------------------------+----------+---------
 id                  | uuid                   | not null |
 extension_id        | uuid                   | not null |
 position            | integer                | not null |
 name                | character varying(128) | not null |
 title               | character varying(128) | not null |
 subtitle            | text                   |          |
 description         | text                   |          |
 keywords            | jsonb                  | not null | '[]'
 mode                | character varying(16)  | not null |
 disabled_by_default | boolean                | not null | false
 beta                | boolean                | not null | false
 icon_light          | text                   |          |
 icon_dark           | text                   |          |
Indexes: UNIQUE (extension_id, name)
*/

type Command struct {
	ID                uuid.UUID `db:"id"`
	ExtensionID       uuid.UUID `db:"extension_id"`
	Position          int       `db:"position"`
	Name              string    `db:"name"`
	Title             string    `db:"title"`
	Subtitle          *string   `db:"subtitle"`
	Description       *string   `db:"description"`
	Keywords          []string  `db:"keywords"`
	Mode              string    `db:"mode"`
	DisabledByDefault bool      `db:"disabled_by_default"`
	Beta              bool      `db:"beta"`
	IconLight         *string   `db:"icon_light"`
	IconDark          *string   `db:"icon_dark"`
}

// RankingInput is the snapshot of an extension the trending ranker works on.
type RankingInput struct {
	ID            uuid.UUID `db:"id"`
	DownloadCount int64     `db:"download_count"`
	CreatedAt     time.Time `db:"created_at"`
}

type ExtensionFilter struct {
	Category          string
	Query             string
	Offset            int
	Limit             int
	IncludeKillListed bool
}
