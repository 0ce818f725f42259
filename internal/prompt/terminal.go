package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pentops/log.go/log"
)

var (
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F4D03F"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#20B9B4"))
)

// Terminal prompts with interactive forms.
type Terminal struct {
	Out io.Writer

	// Accessible replaces the interactive widgets with plain line prompts.
	Accessible bool
}

func NewTerminal() *Terminal {
	return &Terminal{
		Out:        os.Stderr,
		Accessible: os.Getenv("ACCESSIBLE") != "",
	}
}

func (t *Terminal) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithAccessible(t.Accessible).
		WithOutput(t.Out)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrCanceled
		}
		return err
	}
	return nil
}

func asError(validate Validator) func(string) error {
	return func(s string) error {
		if msg := validate(s); msg != "" {
			return errors.New(msg)
		}
		return nil
	}
}

func (t *Terminal) Input(ctx context.Context, in Input) (string, error) {
	value := in.Value
	field := huh.NewInput().
		Title(in.Title).
		Description(in.Description).
		Placeholder(in.Placeholder).
		Value(&value)
	if in.Validate != nil {
		field = field.Validate(asError(in.Validate))
	}
	if err := t.run(ctx, field); err != nil {
		return "", err
	}
	return value, nil
}

func (t *Terminal) Select(ctx context.Context, sel Select) (string, error) {
	options := make([]huh.Option[string], 0, len(sel.Options))
	for _, opt := range sel.Options {
		label := opt.Label
		if opt.Description != "" {
			label = fmt.Sprintf("%s  %s", opt.Label, lipgloss.NewStyle().Faint(true).Render(opt.Description))
		}
		options = append(options, huh.NewOption(label, opt.Value))
	}

	var value string
	field := huh.NewSelect[string]().
		Title(sel.Title).
		Description(sel.Description).
		Options(options...).
		Value(&value)
	if err := t.run(ctx, field); err != nil {
		return "", err
	}
	return value, nil
}

func (t *Terminal) Confirm(ctx context.Context, c Confirm) (bool, error) {
	affirmative := c.Affirmative
	if affirmative == "" {
		affirmative = "Yes"
	}
	negative := c.Negative
	if negative == "" {
		negative = "Cancel"
	}

	var value bool
	field := huh.NewConfirm().
		Title(c.Title).
		Description(c.Description).
		Affirmative(affirmative).
		Negative(negative).
		Value(&value)
	if err := t.run(ctx, field); err != nil {
		return false, err
	}
	return value, nil
}

func (t *Terminal) Path(ctx context.Context, p Path) ([]string, error) {
	switch p.Kind {
	case PathFile:
		var value string
		field := huh.NewFilePicker().
			Title(p.Title).
			CurrentDirectory(p.Dir).
			FileAllowed(true).
			DirAllowed(false).
			Picking(true).
			Value(&value)
		if len(p.Extensions) > 0 {
			field = field.AllowedTypes(p.Extensions)
		}
		if err := t.run(ctx, field); err != nil {
			return nil, err
		}
		if value == "" {
			return nil, ErrCanceled
		}
		return []string{value}, nil

	case PathFolder:
		value, err := t.Input(ctx, Input{
			Title:    p.Title,
			Value:    p.Dir,
			Validate: ValidateFolder,
		})
		if err != nil {
			return nil, err
		}
		return []string{value}, nil

	case PathFiles:
		var value string
		field := huh.NewText().
			Title(p.Title).
			Description("One path per line.").
			Value(&value).
			Validate(asError(func(s string) string {
				return validateFiles(SplitLines(s), p.Extensions)
			}))
		if err := t.run(ctx, field); err != nil {
			return nil, err
		}
		return SplitLines(value), nil
	}
	return nil, fmt.Errorf("unknown path kind %d", p.Kind)
}

func (t *Terminal) Notify(ctx context.Context, level Level, msg string) {
	var line string
	switch level {
	case LevelWarning:
		log.Warn(ctx, msg)
		line = warningStyle.Render("warning: ") + msg
	case LevelError:
		log.Error(ctx, msg)
		line = errorStyle.Render("error: ") + msg
	default:
		log.Info(ctx, msg)
		line = infoStyle.Render(msg)
	}
	fmt.Fprintln(t.Out, line)
}

// ValidateFolder accepts existing directories.
func ValidateFolder(path string) string {
	if strings.TrimSpace(path) == "" {
		return "Please select a folder."
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("The folder %s does not exist.", path)
	}
	if !info.IsDir() {
		return fmt.Sprintf("%s is not a folder.", path)
	}
	return ""
}

func validateFiles(paths []string, extensions []string) string {
	if len(paths) == 0 {
		return "Please provide at least one file."
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return fmt.Sprintf("The file %s does not exist.", path)
		}
		if len(extensions) > 0 && !slices.Contains(extensions, filepath.Ext(path)) {
			return fmt.Sprintf("The file %s must have one of the extensions %s.", path, strings.Join(extensions, ", "))
		}
	}
	return ""
}

// SplitLines returns the trimmed, non-empty lines of s.
func SplitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
