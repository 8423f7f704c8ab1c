package workspace

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed templates/icon16.png templates/icon48.png templates/icon128.png
var templateFS embed.FS

// TemplateIconPaths lists the placeholder icon files seeded into every new
// session workspace. Generators reference these paths from manifests instead
// of producing image data themselves.
var TemplateIconPaths = []string{"icon16.png", "icon48.png", "icon128.png"}

// seedIcons copies the embedded template icons into dir. Icons already
// present are left untouched, so re-initializing an existing workspace never
// clobbers them.
func seedIcons(dir string) error {
	for _, name := range TemplateIconPaths {
		dst := filepath.Join(dir, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return fmt.Errorf("reading template icon %s: %w", name, err)
		}
		if err := writeFileAtomic(dst, data); err != nil {
			return fmt.Errorf("seeding icon %s: %w", name, err)
		}
	}
	return nil
}

// IsTemplateIcon reports whether the path names one of the seeded icons.
func IsTemplateIcon(path string) bool {
	for _, name := range TemplateIconPaths {
		if path == name {
			return true
		}
	}
	return false
}
