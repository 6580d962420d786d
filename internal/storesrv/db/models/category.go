package models

/*
 Column |          Type          | Nullable | Default
--------+------------------------+----------+---------
 id     | character varying(64)  | not null |
 name   | character varying(128) | not null |

extension_categories (extension_id uuid, category_id varchar(64)) PRIMARY KEY (extension_id, category_id)
*/

// Category ID is the slug of its display name.
type Category struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type CategoryCount struct {
	Category
	Extensions int `db:"extensions"`
}

/*
 platforms (id varchar(16) PRIMARY KEY)
 extension_platforms (extension_id uuid, platform_id varchar(16)) PRIMARY KEY (extension_id, platform_id)
*/
