package prompt

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Scripted answers prompts from fixed lists, in order. An exhausted list
// behaves like the user dismissing the prompt.
type Scripted struct {
	Inputs   []string
	Selects  []string
	Confirms []bool
	Paths    [][]string

	lock  sync.Mutex
	Asked []string
	Notes []Note
}

type Note struct {
	Level   Level
	Message string
}

var _ Prompter = (*Scripted)(nil)

func (s *Scripted) ask(title string) {
	s.Asked = append(s.Asked, title)
}

func (s *Scripted) Input(_ context.Context, in Input) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ask(in.Title)
	if len(s.Inputs) == 0 {
		return "", ErrCanceled
	}
	value := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	if in.Validate != nil {
		if msg := in.Validate(value); msg != "" {
			return "", fmt.Errorf("input %q rejected: %s", value, msg)
		}
	}
	return value, nil
}

func (s *Scripted) Select(_ context.Context, sel Select) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ask(sel.Title)
	if len(s.Selects) == 0 {
		return "", ErrCanceled
	}
	value := s.Selects[0]
	s.Selects = s.Selects[1:]
	if !slices.ContainsFunc(sel.Options, func(opt Option) bool { return opt.Value == value }) {
		return "", fmt.Errorf("%q is not an option of %q", value, sel.Title)
	}
	return value, nil
}

func (s *Scripted) Confirm(_ context.Context, c Confirm) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ask(c.Title)
	if len(s.Confirms) == 0 {
		return false, ErrCanceled
	}
	value := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return value, nil
}

func (s *Scripted) Path(_ context.Context, p Path) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ask(p.Title)
	if len(s.Paths) == 0 {
		return nil, ErrCanceled
	}
	value := s.Paths[0]
	s.Paths = s.Paths[1:]
	return value, nil
}

func (s *Scripted) Notify(_ context.Context, level Level, msg string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Notes = append(s.Notes, Note{Level: level, Message: msg})
}
