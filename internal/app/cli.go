package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/app"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-engine/internal/domain/cart"
	"github.com/xenking/kart-engine/internal/domain/lifecycle"
	"github.com/xenking/kart-engine/pkg/health"
)

// ErrUsage is returned when a command is invoked with bad arguments.
var ErrUsage = errors.New("usage error")

// Run wires the services from cfg and executes a single kartctl command.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, args []string) error {
	svc, err := Build(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	cli := &CLI{
		Engine:     svc.Engine,
		Repository: svc.Repository,
		Health:     svc.Health,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		NewID:      uuid.NewString,
	}
	return cli.Run(ctx, args)
}

// CLI executes cart commands. Requests are read as JSON from In; carts and
// wrappers are written as JSON to Out.
type CLI struct {
	Engine     *cart.Engine
	Repository *lifecycle.Repository
	Health     *health.Health
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	NewID      func() string
}

type command struct {
	usage string
	run   func(c *CLI, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"price":        {usage: "price a cart request without storing it", run: (*CLI).price},
	"create":       {usage: "price a cart request and store it as a new cart", run: (*CLI).create},
	"save":         {usage: "reprice a stored cart from a new request", run: (*CLI).save},
	"place":        {usage: "place a stored cart", run: (*CLI).place},
	"attach-order": {usage: "attach an order id to a placed cart", run: (*CLI).attachOrder},
	"show":         {usage: "print a stored cart", run: (*CLI).show},
	"check":        {usage: "probe the configured databases", run: (*CLI).check},
}

// Run dispatches args[0] to the matching command.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.usage()
		return ErrUsage
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		c.usage()
		return errors.Wrapf(ErrUsage, "unknown command %q", name)
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.Err)
	return cmd.run(c, ctx, fs, args[1:])
}

func (c *CLI) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintln(c.Err, "usage: kartctl <command> [flags]")
	for _, name := range names {
		_, _ = fmt.Fprintf(c.Err, "  %-13s %s\n", name, commands[name].usage)
	}
}

func (c *CLI) price(ctx context.Context, fs *flag.FlagSet, args []string) error {
	in := fs.String("in", "-", "request file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(ErrUsage, err.Error())
	}

	priced, err := c.compute(ctx, *in)
	if err != nil {
		return err
	}

	var e jx.Encoder
	priced.Encode(&e)
	return c.write(e.Bytes())
}

func (c *CLI) create(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		in       = fs.String("in", "-", "request file, - for stdin")
		id       = fs.String("id", "", "cart id, generated when empty")
		customer = fs.String("customer", "", "customer identifier")
		email    = fs.String("email", "", "customer email")
		attrs    = attrFlag{}
	)
	fs.Var(attrs, "attr", "extra attribute key=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(ErrUsage, err.Error())
	}
	if *id == "" {
		*id = c.NewID()
	}

	priced, err := c.compute(ctx, *in)
	if err != nil {
		return err
	}

	var opts []lifecycle.CreateOption
	if len(attrs) > 0 {
		opts = append(opts, lifecycle.WithExtra(lifecycle.Extra{Attributes: attrs}))
	}
	if *customer != "" {
		opts = append(opts, lifecycle.WithCustomer(lifecycle.Customer{Identifier: *customer, Email: *email}))
	}

	w := c.Repository.Create(priced, *id, opts...)
	if err := c.checked(ctx, w, lifecycle.TransitionSave, c.Repository.Save); err != nil {
		return err
	}
	return c.write(lifecycle.Encode(w))
}

func (c *CLI) save(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		in = fs.String("in", "-", "request file, - for stdin")
		id = fs.String("id", "", "cart id")
	)
	w, err := c.find(ctx, fs, args, id)
	if err != nil {
		return err
	}
	if !c.Repository.CanTransit(w, lifecycle.TransitionSave) {
		return &RejectedError{CartID: w.CartID, State: w.State, Transition: lifecycle.TransitionSave}
	}

	priced, err := c.compute(ctx, *in)
	if err != nil {
		return err
	}
	w.Cart = *priced

	if err := c.checked(ctx, w, lifecycle.TransitionSave, c.Repository.Save); err != nil {
		return err
	}
	return c.write(lifecycle.Encode(w))
}

func (c *CLI) place(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "cart id")
	w, err := c.find(ctx, fs, args, id)
	if err != nil {
		return err
	}
	if err := c.checked(ctx, w, lifecycle.TransitionPlace, c.Repository.Place); err != nil {
		return err
	}
	return c.write(lifecycle.Encode(w))
}

func (c *CLI) attachOrder(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		id      = fs.String("id", "", "cart id")
		orderID = fs.String("order", "", "order id")
	)
	w, err := c.find(ctx, fs, args, id)
	if err != nil {
		return err
	}
	if *orderID == "" {
		return errors.Wrap(ErrUsage, "-order is required")
	}
	if err := c.Repository.AttachOrderID(ctx, w, *orderID); err != nil {
		return errors.Wrapf(err, "attach order to cart %s", w.CartID)
	}
	return c.write(lifecycle.Encode(w))
}

func (c *CLI) show(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "cart id")
	w, err := c.find(ctx, fs, args, id)
	if err != nil {
		return err
	}
	return c.write(lifecycle.Encode(w))
}

func (c *CLI) check(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(ErrUsage, err.Error())
	}
	if c.Health == nil {
		return errors.New("no health checks configured")
	}

	report := c.Health.Run(ctx)
	var e jx.Encoder
	report.Encode(&e)
	if err := c.write(e.Bytes()); err != nil {
		return err
	}
	return report.Err()
}

// RejectedError is returned when the lifecycle does not allow a command on
// the cart's current state.
type RejectedError struct {
	CartID     string
	State      lifecycle.State
	Transition lifecycle.Transition
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("cart %s is %s: %s not allowed", e.CartID, e.State, e.Transition)
}

func (c *CLI) checked(
	ctx context.Context,
	w *lifecycle.Wrapper,
	t lifecycle.Transition,
	fn func(context.Context, *lifecycle.Wrapper) (bool, error),
) error {
	from := w.State
	ok, err := fn(ctx, w)
	if err != nil {
		return err
	}
	if !ok {
		return &RejectedError{CartID: w.CartID, State: from, Transition: t}
	}
	return nil
}

func (c *CLI) find(ctx context.Context, fs *flag.FlagSet, args []string, id *string) (*lifecycle.Wrapper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(ErrUsage, err.Error())
	}
	if *id == "" {
		return nil, errors.Wrap(ErrUsage, "-id is required")
	}
	w, err := c.Repository.Find(ctx, *id)
	if err != nil {
		return nil, errors.Wrapf(err, "find cart %s", *id)
	}
	return w, nil
}

func (c *CLI) compute(ctx context.Context, path string) (*cart.Cart, error) {
	data, err := c.read(path)
	if err != nil {
		return nil, err
	}

	var req cart.Request
	if err := req.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	priced, err := c.Engine.Compute(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "price cart")
	}
	return priced, nil
}

func (c *CLI) read(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(c.In)
		if err != nil {
			return nil, errors.Wrap(err, "read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func (c *CLI) write(data []byte) error {
	if _, err := c.Out.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}

type attrFlag map[string]string

func (a attrFlag) String() string {
	pairs := make([]string, 0, len(a))
	for k, v := range a {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (a attrFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return errors.Errorf("attribute %q: want key=value", v)
	}
	a[k] = val
	return nil
}
