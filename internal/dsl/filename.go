package dsl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"
	glob "github.com/ryanuber/go-glob"
)

const javaNamingConvention = `[A-Z][a-zA-Z_$0-9]*`

var (
	javaNamePattern     = regexp.MustCompile(`^` + javaNamingConvention + `$`)
	reservedCharPattern = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	windowsReserved     = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
)

const maxFileNameLength = 255

// ValidateFileName checks a base name (no extension) for a new file of this
// descriptor in dir. It returns an empty string when the name is usable.
func (d Descriptor) ValidateFileName(name string, dir string) string {
	if name == "" {
		return "Please provide a name for the new file (without extension)."
	}
	if strings.Contains(name, ".") {
		return "Please provide a name without the extension."
	}
	if _, err := os.Stat(filepath.Join(dir, d.FileName(name))); err == nil {
		return "The file already exists. Please choose a different file name."
	}
	if !IsValidFileName(name) {
		return "The filename is invalid."
	}
	if d.Language == LanguageJava && (!javaNamePattern.MatchString(name) || strings.Contains(name, " ")) {
		msg := fmt.Sprintf("The filename needs to follow the %s naming convention. I.e. %s", d.Language, javaNamingConvention)
		if suggestion := strcase.ToCamel(name); javaNamePattern.MatchString(suggestion) {
			msg += fmt.Sprintf(" (e.g. %s)", suggestion)
		}
		return msg
	}
	return ""
}

// ValidateOutputFileName checks the name of a transformed route, which must
// carry its extension.
func ValidateOutputFileName(name string) string {
	if name == "" {
		return "Please provide a name for the new file."
	}
	if !strings.Contains(name, ".") {
		return "Please provide a name with an extension."
	}
	if !IsValidFileName(name) {
		return "The filename is invalid."
	}
	return ""
}

// IsValidFileName rejects names that at least one common filesystem refuses.
func IsValidFileName(name string) bool {
	if name == "" || len(name) > maxFileNameLength {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	if reservedCharPattern.MatchString(name) {
		return false
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return false
	}
	return !windowsReserved.MatchString(name)
}

var routeFilePatterns = []struct {
	pattern string
	desc    Descriptor
}{
	{"*.kamelet.yaml", Kamelet},
	{"*-pipe.yaml", Pipe},
	{"*.camel.yaml", Yaml},
	{"*.camel.xml", Xml},
	{"*.java", Java},
	{"*.xml", Xml},
	{"*.yaml", Yaml},
	{"*.yml", Yaml},
}

// Detect guesses the descriptor of an existing route file from its name.
func Detect(path string) (Descriptor, bool) {
	base := filepath.Base(path)
	for _, candidate := range routeFilePatterns {
		if glob.Glob(candidate.pattern, base) {
			return candidate.desc, true
		}
	}
	return Descriptor{}, false
}
