// Package gav validates Maven group:artifact:version coordinates entered for
// new projects.
package gav

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const Default = "com.acme:myproject:1.0-SNAPSHOT"

var (
	groupPartPattern = regexp.MustCompile(`^[a-z]\w*$`)
	artifactPattern  = regexp.MustCompile(`^[a-zA-Z]\w*$`)
	versionPattern   = regexp.MustCompile(`^\d[\w\-.]*$`)
)

type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s:%s:%s", c.GroupID, c.ArtifactID, c.Version)
}

// Validate returns a human readable reason when name is not a usable
// coordinate, or an empty string when it is. The first failing rule wins.
func Validate(name string) string {
	if name == "" {
		return "Please provide a GAV for the new project following groupId:artifactId:version pattern."
	}
	if strings.Contains(name, " ") {
		return "The GAV cannot contain a space. It must constituted from groupId, artifactId and version following groupId:artifactId:version pattern."
	}
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return "The GAV needs to have double-dot `:` separator and constituted from groupId, artifactId and version"
	}

	groupParts := strings.Split(parts[0], ".")
	if groupParts[0] == "" {
		return "The group id cannot start with a ."
	}
	for _, sub := range groupParts {
		if !groupPartPattern.MatchString(sub) {
			return fmt.Sprintf("Invalid subpart of group Id: %s . It must follow groupId:artifactId:version pattern with group Id subpart separated by dot needs to follow this specific pattern: [a-z]\\w*", sub)
		}
	}

	if !artifactPattern.MatchString(parts[1]) {
		return fmt.Sprintf("Invalid artifact Id: %s . It must follow groupId:artifactId:version pattern with artifactId specific pattern: [a-zA-Z]\\w*", parts[1])
	}

	if !versionPattern.MatchString(parts[2]) {
		return fmt.Sprintf("Invalid version: %s . It must follow groupId:artifactId:version pattern with version specific pattern: \\d[\\w-.]*", parts[2])
	}
	return ""
}

// Parse validates and splits name.
func Parse(name string) (Coordinate, error) {
	if reason := Validate(name); reason != "" {
		return Coordinate{}, errors.New(reason)
	}
	parts := strings.Split(name, ":")
	return Coordinate{
		GroupID:    parts[0],
		ArtifactID: parts[1],
		Version:    parts[2],
	}, nil
}
