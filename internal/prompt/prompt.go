// Package prompt collects user input for the interactive commands.
package prompt

import (
	"context"
	"errors"
)

// ErrCanceled is returned when the user dismisses a prompt.
var ErrCanceled = errors.New("canceled")

// Validator returns an empty string for acceptable input, otherwise the
// message to show.
type Validator func(string) string

type Input struct {
	Title       string
	Description string
	Placeholder string

	// Value is the initial value.
	Value    string
	Validate Validator
}

type Option struct {
	Label       string
	Description string
	Value       string
}

type Select struct {
	Title       string
	Description string
	Options     []Option
}

type Confirm struct {
	Title       string
	Description string
	Affirmative string
	Negative    string
}

type PathKind int

const (
	PathFile PathKind = iota
	PathFolder
	PathFiles
)

type Path struct {
	Title string
	Kind  PathKind

	// Dir is where browsing starts, and the default folder.
	Dir string

	// Extensions restricts file selection, e.g. ".yaml".
	Extensions []string
}

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Prompter is the user facing half of a command. Dismissing any prompt
// returns ErrCanceled.
type Prompter interface {
	Input(ctx context.Context, in Input) (string, error)
	Select(ctx context.Context, sel Select) (string, error)

	// Confirm returns false when the user declines.
	Confirm(ctx context.Context, c Confirm) (bool, error)

	// Path returns one path, or several for PathFiles.
	Path(ctx context.Context, p Path) ([]string, error)

	Notify(ctx context.Context, level Level, msg string)
}
