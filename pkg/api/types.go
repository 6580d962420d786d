// Package api holds the JSON bodies exchanged between the store server and its clients.
package api

import "time"

type AuthorView struct {
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatarUrl"`
	ProfileURL string `json:"profileUrl"`
}

// Icons carries resolved icon URLs. Either variant may be missing.
type Icons struct {
	Light *string `json:"light"`
	Dark  *string `json:"dark"`
}

type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CommandView struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Title             string   `json:"title"`
	Subtitle          *string  `json:"subtitle"`
	Description       *string  `json:"description"`
	Keywords          []string `json:"keywords"`
	Mode              string   `json:"mode"`
	DisabledByDefault bool     `json:"disabledByDefault"`
	Beta              bool     `json:"beta"`
	Icons             Icons    `json:"icons"`
}

type ExtensionView struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Author        AuthorView    `json:"author"`
	DownloadCount int64         `json:"downloadCount"`
	APIVersion    string        `json:"apiVersion"`
	Checksum      string        `json:"checksum"`
	Trending      bool          `json:"trending"`
	Icons         Icons         `json:"icons"`
	Categories    []CategoryRef `json:"categories"`
	Platforms     []string      `json:"platforms"`
	Commands      []CommandView `json:"commands"`
	SourceURL     string        `json:"sourceUrl"`
	ReadmeURL     *string       `json:"readmeUrl"`
	DownloadURL   string        `json:"downloadUrl"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination derives the page flags from the total number of matches.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

type ListResponse struct {
	Extensions []ExtensionView `json:"extensions"`
	Pagination Pagination      `json:"pagination"`
}

type SearchResponse struct {
	Extensions []ExtensionView `json:"extensions"`
	Pagination Pagination      `json:"pagination"`
	Query      string          `json:"query"`
}

type CategoryView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Extensions int    `json:"extensions"`
}

type PublishedExtension struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Author      AuthorView `json:"author"`
	Checksum    string     `json:"checksum"`
	DownloadURL string     `json:"downloadUrl"`
	IsNew       bool       `json:"isNew"`
}

type PublishResponse struct {
	Success   bool               `json:"success"`
	Extension PublishedExtension `json:"extension"`
}

// ActionResponse acknowledges an admin operation.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TrendingResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Candidates int      `json:"candidates"`
	Trending   []string `json:"trending"`
}
