package manifest

import "strings"

const assetsDir = "assets/"

// IconVariants holds the icon to use on light and dark themes. Either may be nil.
type IconVariants struct {
	Light *string
	Dark  *string
}

// ParseIcon derives theme variants from an icon reference. A reference containing
// "@dark" is dark only, one containing "@light" is light only, and any other
// reference serves both themes.
func ParseIcon(icon *string) IconVariants {
	if icon == nil || *icon == "" {
		return IconVariants{}
	}
	ref := *icon
	switch {
	case strings.Contains(ref, "@dark"):
		return IconVariants{Dark: &ref}
	case strings.Contains(ref, "@light"):
		return IconVariants{Light: &ref}
	}
	light, dark := ref, ref
	return IconVariants{Light: &light, Dark: &dark}
}

// AssetArchivePath is where an icon reference lives inside the archive.
func AssetArchivePath(ref string) string {
	if strings.HasPrefix(ref, assetsDir) {
		return ref
	}
	return assetsDir + ref
}
