// Package fsm implements a generic, table-driven finite state machine.
//
// A Machine is built once from a Definition and then applied to any number of
// subjects. It carries no persistence and knows nothing about the entities it
// drives: subjects expose their state through the Stateful interface.
package fsm

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-faster/errors"
)

// Stateful is implemented by subjects whose state is driven by a Machine.
type Stateful[S comparable] interface {
	CurrentState() S
	SetState(S)
}

// Hook is a callback run during a transition.
type Hook[T any] func(ctx context.Context, subject T)

// Transition describes a single outgoing edge of a state.
type Transition[S comparable, T any] struct {
	To     S
	Action Hook[T]
}

// State describes a state and its outgoing transitions.
type State[S, E comparable, T any] struct {
	// OnEnter runs before the subject state is changed to this state.
	OnEnter Hook[T]
	// OnExit runs when the subject leaves this state, before OnEnter of the destination.
	OnExit Hook[T]
	// OnEntered runs after the subject state has been changed to this state.
	OnEntered   Hook[T]
	Transitions map[E]Transition[S, T]
}

// Definition is the static transition table of a Machine.
type Definition[S, E comparable, T any] struct {
	States map[S]State[S, E, T]
}

// DefinitionError is returned by New when a transition references a state
// missing from the table.
type DefinitionError struct {
	From  string
	Event string
	To    string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("transition %q from %q references undefined state %q", e.Event, e.From, e.To)
}

// TransitionError indicates an illegal transition was attempted.
type TransitionError struct {
	State   string
	Event   string
	Message string
}

func (e *TransitionError) Error() string {
	return e.Message
}

// StatusCode returns the client-error status associated with illegal transitions.
func (e *TransitionError) StatusCode() int {
	return http.StatusBadRequest
}

// Machine executes transitions of a Definition on Stateful subjects.
type Machine[S, E comparable, T Stateful[S]] struct {
	states map[S]State[S, E, T]
}

// New validates def and returns a Machine for it.
func New[S, E comparable, T Stateful[S]](def Definition[S, E, T]) (*Machine[S, E, T], error) {
	if len(def.States) == 0 {
		return nil, errors.New("definition has no states")
	}

	// Sorted for a stable error on broken tables.
	from := make([]S, 0, len(def.States))
	for s := range def.States {
		from = append(from, s)
	}
	slices.SortFunc(from, func(a, b S) int {
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	})

	for _, s := range from {
		for event, tr := range def.States[s].Transitions {
			if _, ok := def.States[tr.To]; !ok {
				return nil, &DefinitionError{
					From:  fmt.Sprint(s),
					Event: fmt.Sprint(event),
					To:    fmt.Sprint(tr.To),
				}
			}
		}
	}

	return &Machine[S, E, T]{states: def.States}, nil
}

// MustNew is like New but panics on an invalid definition. It is intended for
// package-level tables.
func MustNew[S, E comparable, T Stateful[S]](def Definition[S, E, T]) *Machine[S, E, T] {
	m, err := New(def)
	if err != nil {
		panic(err)
	}
	return m
}

type resolved[S, E comparable, T any] struct {
	current     State[S, E, T]
	transition  Transition[S, T]
	destination State[S, E, T]
}

func (m *Machine[S, E, T]) resolve(subject T, event E) (resolved[S, E, T], error) {
	state := subject.CurrentState()
	current, ok := m.states[state]
	if !ok {
		return resolved[S, E, T]{}, &TransitionError{
			State:   fmt.Sprint(state),
			Event:   fmt.Sprint(event),
			Message: fmt.Sprintf("Subject is in unknown state '%v'.", state),
		}
	}

	tr, ok := current.Transitions[event]
	if !ok {
		return resolved[S, E, T]{}, &TransitionError{
			State:   fmt.Sprint(state),
			Event:   fmt.Sprint(event),
			Message: fmt.Sprintf("Cannot find the transition '%v' on subject with state '%v'.", event, state),
		}
	}

	destination, ok := m.states[tr.To]
	if !ok {
		return resolved[S, E, T]{}, &TransitionError{
			State:   fmt.Sprint(state),
			Event:   fmt.Sprint(event),
			Message: fmt.Sprintf("Cannot transition to '%v' from '%v'. It does not exist.", tr.To, state),
		}
	}

	return resolved[S, E, T]{
		current:     current,
		transition:  tr,
		destination: destination,
	}, nil
}

// CanTransit reports whether event is a valid transition from the subject's
// current state. It never mutates the subject.
func (m *Machine[S, E, T]) CanTransit(subject T, event E) bool {
	_, err := m.resolve(subject, event)
	return err == nil
}

// Transition applies event to subject. Hooks run in order: transition action,
// current state OnExit, destination OnEnter, state change, destination OnEntered.
func (m *Machine[S, E, T]) Transition(ctx context.Context, subject T, event E) error {
	r, err := m.resolve(subject, event)
	if err != nil {
		return err
	}

	run(ctx, r.transition.Action, subject)
	run(ctx, r.current.OnExit, subject)
	run(ctx, r.destination.OnEnter, subject)
	subject.SetState(r.transition.To)
	run(ctx, r.destination.OnEntered, subject)

	return nil
}

func run[T any](ctx context.Context, h Hook[T], subject T) {
	if h != nil {
		h(ctx, subject)
	}
}
