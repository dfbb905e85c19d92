// Package lifecycle persists priced carts and drives them through the
// cart → placed → paid lifecycle.
package lifecycle

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-engine/internal/domain/cart"
	"github.com/xenking/kart-engine/internal/fsm"
)

// ExtraVersion is the current version of Extra.
const ExtraVersion = 1

// ErrNotFound is returned when no cart is stored under the requested id.
var ErrNotFound = errors.New("cart not found")

// State is a cart lifecycle state.
type State string

const (
	// StateCart is the initial, editable state.
	StateCart State = "cart"
	// StatePlaced means the cart was turned into a pending order.
	StatePlaced State = "placed"
	// StatePaid is terminal.
	StatePaid State = "paid"
)

// Transition names a lifecycle transition.
type Transition string

const (
	TransitionSave    Transition = "save"
	TransitionPlace   Transition = "place"
	TransitionFulfill Transition = "fulfill"
)

// Customer identifies the owner of a cart.
type Customer struct {
	Identifier string
	Email      string
	FirstName  string
	LastName   string
}

// Extra holds data attached to a cart during its lifecycle.
type Extra struct {
	Version    int
	OrderID    string
	Attributes map[string]string
}

// Wrapper is a persisted cart together with its lifecycle state.
type Wrapper struct {
	CartID   string
	Cart     cart.Cart
	State    State
	Customer *Customer
	Extra    Extra
}

// CurrentState implements fsm.Stateful.
func (w *Wrapper) CurrentState() State { return w.State }

// SetState implements fsm.Stateful.
func (w *Wrapper) SetState(s State) { w.State = s }

// Definition is a lifecycle transition table.
type Definition = fsm.Definition[State, Transition, *Wrapper]

// DefaultDefinition returns the standard lifecycle table:
// save (cart → cart), place (cart → placed), fulfill (placed → paid).
func DefaultDefinition() Definition {
	return Definition{
		States: map[State]fsm.State[State, Transition, *Wrapper]{
			StateCart: {
				Transitions: map[Transition]fsm.Transition[State, *Wrapper]{
					TransitionSave:  {To: StateCart},
					TransitionPlace: {To: StatePlaced},
				},
			},
			StatePlaced: {
				Transitions: map[Transition]fsm.Transition[State, *Wrapper]{
					TransitionFulfill: {To: StatePaid},
				},
			},
			StatePaid: {},
		},
	}
}

// Storage is a key-value store for encoded wrappers.
type Storage interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
