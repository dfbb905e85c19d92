package lifecycle

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-engine/internal/domain/cart"
	"github.com/xenking/kart-engine/internal/fsm"
)

// Option configures a Repository.
type Option func(*options)

type options struct {
	definition    *Definition
	meterProvider metric.MeterProvider
}

// WithDefinition replaces the default transition table.
func WithDefinition(def Definition) Option {
	return func(o *options) {
		o.definition = &def
	}
}

// WithMeterProvider sets the meter provider for transition metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// CreateOption configures a new Wrapper.
type CreateOption func(*Wrapper)

// WithExtra sets the initial extra data.
func WithExtra(extra Extra) CreateOption {
	return func(w *Wrapper) {
		w.Extra = extra
	}
}

// WithCustomer sets the cart owner.
func WithCustomer(c Customer) CreateOption {
	return func(w *Wrapper) {
		w.Customer = &c
	}
}

// Repository manages persisted cart wrappers. Every mutation is gated by the
// lifecycle state machine.
//
// There is no concurrency control: concurrent writers for the same cart id
// race and the last Set wins.
type Repository struct {
	storage     Storage
	machine     *fsm.Machine[State, Transition, *Wrapper]
	transitions metric.Int64Counter
}

// NewRepository creates a Repository backed by storage.
func NewRepository(storage Storage, opts ...Option) (*Repository, error) {
	o := options{meterProvider: noop.NewMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	def := DefaultDefinition()
	if o.definition != nil {
		def = *o.definition
	}
	machine, err := fsm.New(def)
	if err != nil {
		return nil, errors.Wrap(err, "build state machine")
	}

	meter := o.meterProvider.Meter("github.com/xenking/kart-engine/internal/domain/lifecycle")
	transitions, err := meter.Int64Counter("kart.cart.transitions",
		metric.WithDescription("Cart lifecycle transitions by name and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}

	return &Repository{
		storage:     storage,
		machine:     machine,
		transitions: transitions,
	}, nil
}

// Find loads the wrapper stored under id. It returns ErrNotFound when absent.
func (r *Repository) Find(ctx context.Context, id string) (*Wrapper, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get cart %s", id)
	}

	w, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cart %s", id)
	}
	return w, nil
}

// Create builds a new wrapper in StateCart. It is not persisted.
func (r *Repository) Create(c *cart.Cart, id string, opts ...CreateOption) *Wrapper {
	w := &Wrapper{
		CartID: id,
		Cart:   *c,
		State:  StateCart,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.Extra.Version = ExtraVersion
	return w
}

// CanTransit reports whether t is allowed from the wrapper's current state.
func (r *Repository) CanTransit(w *Wrapper, t Transition) bool {
	return r.machine.CanTransit(w, t)
}

// Save persists w if it is still in StateCart. It returns false without
// persisting otherwise.
func (r *Repository) Save(ctx context.Context, w *Wrapper) (bool, error) {
	return r.checked(ctx, w, TransitionSave)
}

// Place moves w to StatePlaced and persists it. It returns false without
// persisting when w is not in StateCart.
func (r *Repository) Place(ctx context.Context, w *Wrapper) (bool, error) {
	return r.checked(ctx, w, TransitionPlace)
}

// AttachOrderID records orderID on w and moves it to StatePaid.
//
// Unlike Save and Place the transition is not checked first: a wrapper that
// is not in StatePlaced yields *fsm.TransitionError. On any error w is left
// as it was before the call.
func (r *Repository) AttachOrderID(ctx context.Context, w *Wrapper, orderID string) error {
	prevState, prevExtra := w.State, w.Extra

	w.Extra.OrderID = orderID
	if w.Extra.Version == 0 {
		w.Extra.Version = ExtraVersion
	}

	if err := r.transition(ctx, w, TransitionFulfill); err != nil {
		w.SetState(prevState)
		w.Extra = prevExtra
		return err
	}
	if err := r.persist(ctx, w); err != nil {
		w.SetState(prevState)
		w.Extra = prevExtra
		return err
	}
	return nil
}

func (r *Repository) checked(ctx context.Context, w *Wrapper, t Transition) (bool, error) {
	if !r.machine.CanTransit(w, t) {
		r.record(ctx, t, "rejected")
		zctx.From(ctx).Debug("Transition rejected",
			zap.String("cart_id", w.CartID),
			zap.String("state", string(w.State)),
			zap.String("transition", string(t)),
		)
		return false, nil
	}

	from := w.State
	if err := r.transition(ctx, w, t); err != nil {
		return false, err
	}
	if err := r.persist(ctx, w); err != nil {
		w.SetState(from)
		return false, err
	}
	return true, nil
}

func (r *Repository) transition(ctx context.Context, w *Wrapper, t Transition) error {
	from := w.State
	if err := r.machine.Transition(ctx, w, t); err != nil {
		r.record(ctx, t, "failed")
		return err
	}
	r.record(ctx, t, "ok")

	zctx.From(ctx).Debug("Cart transitioned",
		zap.String("cart_id", w.CartID),
		zap.String("from", string(from)),
		zap.String("to", string(w.State)),
		zap.String("transition", string(t)),
	)
	return nil
}

func (r *Repository) persist(ctx context.Context, w *Wrapper) error {
	// TODO: carry a version token through Storage to reject stale writes.
	if err := r.storage.Set(ctx, w.CartID, Encode(w)); err != nil {
		return errors.Wrapf(err, "persist cart %s", w.CartID)
	}
	return nil
}

func (r *Repository) record(ctx context.Context, t Transition, result string) {
	r.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transition", string(t)),
		attribute.String("result", result),
	))
}

// Encode serializes w into the versioned storage envelope.
func Encode(w *Wrapper) []byte {
	var e jx.Encoder
	w.Encode(&e)
	return e.Bytes()
}

// Decode parses a storage envelope produced by Encode.
func Decode(data []byte) (*Wrapper, error) {
	w := &Wrapper{}
	if err := w.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, err
	}
	return w, nil
}
