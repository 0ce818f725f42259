// Package config loads the camelkit settings file. The camel section is the
// namespace forwarded to the language server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	FileName = ".camelkit.yaml"

	DefaultJBangVersion = "4.8.1"
	DefaultDockerImage  = "jbangdev/jbang-action:latest"
	DefaultCommand      = "jbang"
)

type Settings struct {
	Camel  CamelSettings  `yaml:"camel"`
	Runner RunnerSettings `yaml:"runner"`
}

type CamelSettings struct {
	// JBangVersion pins the Camel JBang version used for every CLI call.
	JBangVersion    string   `yaml:"jbangVersion" validate:"required,camelversion"`
	CatalogVersion  string   `yaml:"catalogVersion" validate:"omitempty,camelversion"`
	RuntimeProvider string   `yaml:"runtimeProvider" validate:"omitempty,oneof=DEFAULT SPRINGBOOT QUARKUS KARAF"`
	ExtraComponents []string `yaml:"extraComponents" validate:"dive,required"`
	ExtraRepos      []string `yaml:"extraRepositories" validate:"dive,required"`
	KameletsVersion string   `yaml:"kameletsVersion" validate:"omitempty,camelversion"`
	JavaHome        string   `yaml:"javaHome"`

	LanguageServer LanguageServerSettings `yaml:"languageServer"`
}

type LanguageServerSettings struct {
	Jar    string `yaml:"jar"`
	VMArgs string `yaml:"vmargs"`
}

type RunnerSettings struct {
	Mode    string         `yaml:"mode" validate:"oneof=local docker"`
	Command string         `yaml:"command" validate:"required"`
	Env     []string       `yaml:"env" validate:"dive,required"`
	Docker  DockerSettings `yaml:"docker"`
}

type DockerSettings struct {
	Image        string         `yaml:"image"`
	RegistryAuth []RegistryAuth `yaml:"registryAuth" validate:"dive"`
}

type RegistryAuth struct {
	Registry string      `yaml:"registry" validate:"required"`
	Basic    *BasicAuth  `yaml:"basic,omitempty"`
	Github   *GithubAuth `yaml:"github,omitempty"`
	AwsEcr   *AwsEcrAuth `yaml:"awsEcr,omitempty"`
}

type BasicAuth struct {
	Username       string `yaml:"username" validate:"required"`
	PasswordEnvVar string `yaml:"passwordEnvVar" validate:"required"`
}

type GithubAuth struct {
	TokenEnvVar string `yaml:"tokenEnvVar"`
}

type AwsEcrAuth struct{}

func Default() *Settings {
	return &Settings{
		Camel: CamelSettings{
			JBangVersion: DefaultJBangVersion,
		},
		Runner: RunnerSettings{
			Mode:    "local",
			Command: DefaultCommand,
			Docker: DockerSettings{
				Image: DefaultDockerImage,
			},
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("camelversion", func(fl validator.FieldLevel) bool {
		return IsCamelVersion(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Vendor builds append a dot or dash qualifier to the release,
// e.g. 4.8.0.redhat-00010.
var qualifiedCamelVersion = regexp.MustCompile(`^[0-9]+(\.[0-9]+){1,2}([.-][0-9A-Za-z]+)+$`)

// IsCamelVersion accepts dotted release versions such as 4.8 or 4.8.1 and
// qualified ones such as 4.9.0-SNAPSHOT or 4.8.0.redhat-00010.
func IsCamelVersion(v string) bool {
	return semver.IsValid("v"+v) || qualifiedCamelVersion.MatchString(v)
}

func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		validationErrors := validator.ValidationErrors{}
		if !errors.As(err, &validationErrors) {
			return err
		}
		msgs := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value())))
		}
		return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Path resolves the settings file: an explicit path wins, otherwise the file
// in the workspace root.
func Path(root, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(root, FileName)
}

// Load reads the settings at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (*Settings, error) {
	settings := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	if err := Parse(data, settings); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return settings, nil
}

// Parse decodes data into settings and validates the result.
func Parse(data []byte, settings *Settings) error {
	if err := yaml.Unmarshal(data, settings); err != nil {
		return err
	}
	if settings.Runner.Mode == "" {
		settings.Runner.Mode = "local"
	}
	if settings.Runner.Command == "" {
		settings.Runner.Command = DefaultCommand
	}
	if settings.Runner.Docker.Image == "" {
		settings.Runner.Docker.Image = DefaultDockerImage
	}
	if settings.Camel.JBangVersion == "" {
		settings.Camel.JBangVersion = DefaultJBangVersion
	}
	return settings.Validate()
}

func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Forwarded is the payload sent to the language server, keyed the way the
// server reads its preferences.
func (s *Settings) Forwarded() map[string]interface{} {
	camel := map[string]interface{}{
		"Camel catalog version":          s.Camel.CatalogVersion,
		"Camel catalog runtime provider": s.Camel.RuntimeProvider,
		"extra-components":               nonNil(s.Camel.ExtraComponents),
		"extra-repositories":             nonNil(s.Camel.ExtraRepos),
		"Kamelets version":               s.Camel.KameletsVersion,
		"languageSupport": map[string]interface{}{
			"JBangVersion": s.Camel.JBangVersion,
		},
	}
	return map[string]interface{}{
		"camel": camel,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
