package manifest

import (
	"path"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	v    *validator.Validate
	once sync.Once
)

// V returns the shared validator with the manifest rules registered.
func V() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterValidation("extensionName", extensionNameValidator)
		v.RegisterValidation("commandName", commandNameValidator)
		v.RegisterValidation("githubHandle", githubHandleValidator)
		v.RegisterValidation("platform", platformValidator)
		v.RegisterValidation("commandMode", commandModeValidator)
		v.RegisterValidation("assetPath", assetPathValidator)
	})
	return v
}

var extensionNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

const extensionNameMaxLength = 64

// extensionNameValidator accepts lower case names usable as a path segment and url component.
func extensionNameValidator(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) <= extensionNameMaxLength && extensionNameRegex.MatchString(s) && !strings.Contains(s, "..")
}

var commandNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func commandNameValidator(fl validator.FieldLevel) bool {
	return commandNameRegex.MatchString(fl.Field().String())
}

// GitHub logins: alphanumerics and single hyphens, no leading or trailing hyphen, at most 39 chars.
var githubHandleRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

func githubHandleValidator(fl validator.FieldLevel) bool {
	return githubHandleRegex.MatchString(fl.Field().String())
}

func IsValidPlatform(p string) bool {
	return slices.Contains(Platforms, p)
}

func platformValidator(fl validator.FieldLevel) bool {
	return IsValidPlatform(fl.Field().String())
}

var commandModes = []string{ModeView, ModeNoView, ModeMenuBar}

func commandModeValidator(fl validator.FieldLevel) bool {
	return slices.Contains(commandModes, fl.Field().String())
}

// assetPathValidator rejects absolute references and references leaving the assets directory.
func assetPathValidator(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || strings.HasPrefix(s, "/") || strings.Contains(s, "\\") {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == ".." {
			return false
		}
	}
	return path.Clean(s) == s
}

var semverRangeRegex = regexp.MustCompile(`^(\^|~|>=|<=|>|<|=)?\s*v?(0|[1-9]\d*|x|X|\*)(\.(0|[1-9]\d*|x|X|\*))?(\.(0|[1-9]\d*|x|X|\*))?(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// IsSemverRange reports whether s is a version or simple version range as used in package.json.
func IsSemverRange(s string) bool {
	s = strings.TrimSpace(s)
	if s == "*" || s == "latest" {
		return true
	}
	// each alternative of a || range must be a list of comparators
	for _, alt := range strings.Split(s, "||") {
		comparators := strings.Fields(alt)
		if len(comparators) == 0 {
			return false
		}
		for _, c := range comparators {
			if !semverRangeRegex.MatchString(c) {
				return false
			}
		}
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "unique":
		if fe.Param() != "" {
			return "entries must have unique " + strings.ToLower(fe.Param()) + "s"
		}
		return "entries must be unique"
	case "extensionName":
		return "must be lower case letters, digits, '.', '_' or '-', at most 64 characters"
	case "commandName":
		return "must start with a letter or digit and contain only letters, digits, '_' or '-'"
	case "githubHandle":
		return "must be a valid GitHub handle"
	case "platform":
		return "must be one of: " + strings.Join(Platforms, ", ")
	case "commandMode":
		return "must be one of: " + strings.Join(commandModes, ", ")
	case "assetPath":
		return "must be a relative path inside the archive"
	}
	return "failed the " + fe.Tag() + " rule"
}

// fieldPath converts a validator namespace like "Manifest.commands[0].mode" to "commands/0/mode".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	} else {
		ns = ""
	}
	r := strings.NewReplacer("[", "/", "]", "", ".", "/")
	return r.Replace(ns)
}
