// Package dsl describes the Camel route file flavours and validates the names
// given to new files.
package dsl

import (
	"fmt"
	"strings"
)

type Language string

const (
	LanguageYaml Language = "Yaml"
	LanguageJava Language = "Java"
	LanguageXml  Language = "Xml"
)

// Descriptor is an immutable entry of the route file table.
type Descriptor struct {
	Language    Language
	Extension   string
	PlaceHolder string
}

var (
	Yaml = Descriptor{Language: LanguageYaml, Extension: "camel.yaml", PlaceHolder: "sample-route"}
	Java = Descriptor{Language: LanguageJava, Extension: "java", PlaceHolder: "SampleRoute"}
	Xml  = Descriptor{Language: LanguageXml, Extension: "camel.xml", PlaceHolder: "sample-route"}

	Kamelet = Descriptor{Language: LanguageYaml, Extension: "kamelet.yaml", PlaceHolder: "example"}
	Pipe    = Descriptor{Language: LanguageYaml, Extension: "yaml", PlaceHolder: "example"}
)

// Lookup resolves the user facing DSL name (yaml, java, xml).
func Lookup(name string) (Descriptor, error) {
	switch strings.ToUpper(name) {
	case "YAML":
		return Yaml, nil
	case "JAVA":
		return Java, nil
	case "XML":
		return Xml, nil
	default:
		return Descriptor{}, fmt.Errorf("unknown DSL %q, expected one of yaml, java, xml", name)
	}
}

// FileName returns name with the descriptor extension appended.
func (d Descriptor) FileName(name string) string {
	return fmt.Sprintf("%s.%s", name, d.Extension)
}

func (d Descriptor) String() string {
	return string(d.Language)
}

// Format is the value passed to the transform --format flag.
type Format string

const (
	FormatYaml Format = "yaml"
	FormatXml  Format = "xml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "yaml":
		return FormatYaml, nil
	case "xml":
		return FormatXml, nil
	default:
		return "", fmt.Errorf("unsupported transform format %q", s)
	}
}
