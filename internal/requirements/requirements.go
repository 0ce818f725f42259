// Package requirements locates a Java runtime able to run the Camel language
// server.
package requirements

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/pentops/log.go/log"
)

const RequiredJavaVersion = 17

const (
	LabelOpenSettings = "Open settings"
	LabelGetJDK       = "Get the Java Development Kit"
)

// Error is a requirement failure with an optional remediation the user can
// take.
type Error struct {
	Message string

	// Label names the remediation, Action is where it leads: a settings file
	// path or a URL.
	Label  string
	Action string
}

func (e *Error) Error() string {
	return e.Message
}

// Java is a resolved runtime.
type Java struct {
	Home    string
	Version int

	// Source is where the runtime was found, e.g. env.JAVA_HOME.
	Source string
}

func (j Java) Executable(goos string) string {
	return filepath.Join(j.Home, "bin", javaFileName(goos))
}

func javaFileName(goos string) string {
	if goos == "windows" {
		return "java.exe"
	}
	return "java"
}

// Resolver holds the environment lookups so they can be replaced in tests.
type Resolver struct {
	GOOS string

	// SettingsPath is offered as the remediation for an invalid javaHome.
	SettingsPath string

	Getenv   func(string) string
	LookPath func(string) (string, error)

	// JavaVersion returns the version string printed by java -version.
	JavaVersion func(ctx context.Context, executable string) (string, error)
}

func NewResolver(settingsPath string) *Resolver {
	return &Resolver{
		GOOS:         runtime.GOOS,
		SettingsPath: settingsPath,
		Getenv:       os.Getenv,
		LookPath:     exec.LookPath,
		JavaVersion:  javaVersion,
	}
}

var discoverySources = []string{"env.JDK_HOME", "env.JAVA_HOME", "env.PATH"}

// Resolve validates javaHome when set, otherwise picks the first runtime of
// the required version found in JDK_HOME, JAVA_HOME or PATH.
func (r *Resolver) Resolve(ctx context.Context, javaHome string) (*Java, error) {
	var found *Java
	if javaHome != "" {
		java, err := r.fromSetting(ctx, javaHome)
		if err != nil {
			return nil, err
		}
		found = java
	} else {
		candidates := r.discover(ctx)
		for _, candidate := range candidates {
			if candidate.Version >= RequiredJavaVersion {
				found = candidate
				break
			}
		}
	}

	if found == nil || found.Version < RequiredJavaVersion {
		return nil, &Error{
			Message: fmt.Sprintf("Java %d or more recent is required to run the Camel language server. Please download and install a recent JDK.", RequiredJavaVersion),
			Label:   LabelGetJDK,
			Action:  JDKURL(r.GOOS),
		}
	}

	log.WithFields(ctx, map[string]interface{}{
		"javaHome":    found.Home,
		"javaVersion": found.Version,
		"source":      found.Source,
	}).Debug("Resolved Java runtime")
	return found, nil
}

func (r *Resolver) fromSetting(ctx context.Context, javaHome string) (*Java, error) {
	source := "javaHome setting"
	home, err := expandHome(javaHome)
	if err != nil {
		return nil, err
	}

	javaFile := javaFileName(r.GOOS)
	if !exists(home) {
		return nil, r.invalidSetting(fmt.Sprintf("The %s points to a missing or inaccessible folder (%s)", source, home))
	}
	if !exists(filepath.Join(home, "bin", javaFile)) {
		if exists(filepath.Join(home, javaFile)) {
			return nil, r.invalidSetting(fmt.Sprintf("'bin' should be removed from the %s (%s)", source, home))
		}
		return nil, r.invalidSetting(fmt.Sprintf("The %s (%s) does not point to a JRE.", source, home))
	}

	java := &Java{Home: home, Source: source}
	java.Version = r.version(ctx, java.Executable(r.GOOS))
	return java, nil
}

func (r *Resolver) invalidSetting(msg string) *Error {
	return &Error{
		Message: msg,
		Label:   LabelOpenSettings,
		Action:  r.SettingsPath,
	}
}

// discover returns the candidate runtimes ranked by source.
func (r *Resolver) discover(ctx context.Context) []*Java {
	byHome := map[string]*Java{}
	ranked := []*Java{}
	add := func(home, source string) {
		if home == "" {
			return
		}
		home = filepath.Clean(home)
		if _, ok := byHome[home]; ok {
			return
		}
		java := &Java{Home: home, Source: source}
		if !exists(java.Executable(r.GOOS)) {
			return
		}
		java.Version = r.version(ctx, java.Executable(r.GOOS))
		byHome[home] = java
		ranked = append(ranked, java)
	}

	add(r.Getenv("JDK_HOME"), discoverySources[0])
	add(r.Getenv("JAVA_HOME"), discoverySources[1])
	if path, err := r.LookPath(javaFileName(r.GOOS)); err == nil {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		// <home>/bin/java
		add(filepath.Dir(filepath.Dir(path)), discoverySources[2])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return sourceRank(ranked[i].Source) < sourceRank(ranked[j].Source)
	})
	return ranked
}

func sourceRank(source string) int {
	for idx, s := range discoverySources {
		if s == source {
			return idx
		}
	}
	return len(discoverySources)
}

func (r *Resolver) version(ctx context.Context, executable string) int {
	raw, err := r.JavaVersion(ctx, executable)
	if err != nil {
		log.WithError(ctx, err).Warn("Could not read Java version")
		return 0
	}
	return ParseMajorVersion(raw)
}

var versionLine = regexp.MustCompile(`version "([^"]+)"`)

func javaVersion(ctx context.Context, executable string) (string, error) {
	// java -version prints on stderr
	out, err := exec.CommandContext(ctx, executable, "-version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", executable, err)
	}
	match := versionLine.FindSubmatch(out)
	if match == nil {
		return "", fmt.Errorf("no version in %s -version output", executable)
	}
	return string(match[1]), nil
}

var firstNumber = regexp.MustCompile(`\d+`)

// ParseMajorVersion reads the major version from a Java version string,
// ignoring the legacy 1. prefix.
func ParseMajorVersion(version string) int {
	version = strings.TrimPrefix(version, "1.")
	match := firstNumber.FindString(version)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// JDKURL is the download page offered when no suitable runtime is found.
func JDKURL(goos string) string {
	if goos == "darwin" {
		return "https://adoptium.net/"
	}
	return "https://developers.redhat.com/products/openjdk/download"
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
