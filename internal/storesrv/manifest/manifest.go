// Package manifest validates the package.json shipped at the root of every extension archive.
package manifest

import (
	"net/http"

	"github.com/vicinaehq/backend/internal/common/apperrors"
)

// APIPackage is the platform API every extension must declare as a dependency.
const APIPackage = "@vicinae/api"

const (
	PlatformLinux   = "linux"
	PlatformMacOS   = "macos"
	PlatformWindows = "windows"

	DefaultPlatform = PlatformLinux
)

// Platforms is the fixed set of platforms an extension can target.
var Platforms = []string{PlatformLinux, PlatformMacOS, PlatformWindows}

const (
	ModeView    = "view"
	ModeNoView  = "no-view"
	ModeMenuBar = "menu-bar"
)

type Manifest struct {
	Name         string            `json:"name" validate:"required,extensionName"`
	Title        string            `json:"title" validate:"required,max=128"`
	Description  string            `json:"description" validate:"max=2048"`
	Author       string            `json:"author" validate:"required,githubHandle"`
	Icon         *string           `json:"icon,omitempty" validate:"omitempty,assetPath"`
	Categories   []string          `json:"categories,omitempty" validate:"omitempty,dive,required,max=64"`
	Platforms    []string          `json:"platforms,omitempty" validate:"omitempty,unique,dive,platform"`
	Commands     []CommandManifest `json:"commands,omitempty" validate:"omitempty,unique=Name,dive"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

type CommandManifest struct {
	Name              string   `json:"name" validate:"required,commandName"`
	Title             string   `json:"title" validate:"required,max=128"`
	Subtitle          *string  `json:"subtitle,omitempty"`
	Description       *string  `json:"description,omitempty"`
	Keywords          []string `json:"keywords,omitempty" validate:"omitempty,dive,required"`
	Mode              string   `json:"mode" validate:"required,commandMode"`
	DisabledByDefault bool     `json:"disabledByDefault,omitempty"`
	Beta              bool     `json:"beta,omitempty"`
	Icon              *string  `json:"icon,omitempty" validate:"omitempty,assetPath"`
}

// APIVersion returns the declared version range of the platform API.
func (m *Manifest) APIVersion() string {
	return m.Dependencies[APIPackage]
}

// TargetPlatforms returns the declared platforms, or the default platform when none are declared.
func (m *Manifest) TargetPlatforms() []string {
	if len(m.Platforms) == 0 {
		return []string{DefaultPlatform}
	}
	return m.Platforms
}

// ValidationReport maps a field path such as "commands/0/mode" to the problems found there.
type ValidationReport map[string][]string

func (r ValidationReport) Add(path, msg string) {
	if path == "" {
		path = "$"
	}
	for _, m := range r[path] {
		if m == msg {
			return
		}
	}
	r[path] = append(r[path], msg)
}

var (
	ErrManifest                 apperrors.Error = apperrors.New("manifest error").SetStatusCode(http.StatusBadRequest)
	ErrInvalidManifest          apperrors.Error = ErrManifest.New("invalid JSON in package.json").SetCode("INVALID_MANIFEST")
	ErrManifestValidationFailed apperrors.Error = ErrManifest.New("invalid manifest").SetCode("MANIFEST_VALIDATION_FAILED")
	ErrMissingDependency        apperrors.Error = ErrManifest.New("missing required dependency: " + APIPackage + " must be specified in dependencies").SetCode("MISSING_DEPENDENCY")
)
