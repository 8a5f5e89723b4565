// Package interceptor runs the rewrite pipeline that turns a legacy SQL
// command into one SQLite accepts.
package interceptor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/errors"
	"github.com/ha1tch/jetlite/pkg/log"
	"github.com/ha1tch/jetlite/pkg/processor"
	"github.com/ha1tch/jetlite/pkg/sqltext"
)

// Interceptor rewrites commands in place before they reach the driver.
//
// Primary processors run on the raw text. Quoted literals and <html>,
// <script> and <div> blocks are then hidden behind placeholders while the
// secondary processors run, and restored afterwards. The result always ends
// in exactly one ';'.
//
// An Interceptor holds no per-command state and is safe for concurrent use.
type Interceptor struct {
	primary   []processor.Processor
	secondary []processor.Processor
	logger    *log.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger used for translation events.
func WithLogger(l *log.Logger) Option {
	return func(i *Interceptor) {
		i.logger = l
	}
}

// WithProcessors replaces the default processor lists.
func WithProcessors(primary, secondary []processor.Processor) Option {
	return func(i *Interceptor) {
		i.primary = primary
		i.secondary = secondary
	}
}

// New creates an Interceptor with the standard processors.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{
		primary:   processor.Primary(),
		secondary: processor.Secondary(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = log.Discard()
	}
	return i
}

// Intercept rewrites cmd in place. db is used for schema lookups. On error
// the command text is left as the failing processor found it.
func (i *Interceptor) Intercept(ctx context.Context, cmd *command.Command, db command.Database) error {
	if cmd == nil {
		return errors.InvalidInput("command", "nil").Err()
	}

	tl := i.logger.Translation()
	input := cmd.Text

	if err := i.run(ctx, i.primary, cmd, db); err != nil {
		i.failed("primary processor failed", err, input)
		return err
	}

	sections := sqltext.Protect(cmd.Text)
	cmd.Text = sections.Hide(cmd.Text)

	if err := i.run(ctx, i.secondary, cmd, db); err != nil {
		cmd.Text = sections.Show(cmd.Text)
		i.failed("secondary processor failed", err, input)
		return err
	}

	cmd.Text = strings.TrimRight(sections.Show(cmd.Text), ";") + ";"

	if tl.Enabled(log.LevelDebug) {
		tl.Debug("command translated",
			"input", input,
			"output", cmd.Text,
			"protected", sections.Len(),
			"parameters", len(cmd.Parameters),
		)
	}
	return nil
}

// Translate is a convenience wrapper that rewrites a copy of text and
// params, leaving the caller's values untouched.
func (i *Interceptor) Translate(ctx context.Context, db command.Database, text string, params ...command.Parameter) (*command.Command, error) {
	cmd := command.New(text, params...).Clone()
	if err := i.Intercept(ctx, cmd, db); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (i *Interceptor) run(ctx context.Context, procs []processor.Processor, cmd *command.Command, db command.Database) error {
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := process(ctx, p, cmd, db); err != nil {
			var e *errors.Error
			if errors.As(err, &e) {
				if e.OpName == "" {
					e.OpName = p.Name()
				}
				return err
			}
			return errors.Wrap(err, errors.ErrCodeTranslation, "rewrite failed").
				WithOp(p.Name()).
				WithStack().
				Err()
		}
	}
	return nil
}

// process runs one processor, turning a panic into an internal error.
func process(ctx context.Context, p processor.Processor, cmd *command.Command, db command.Database) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal("processor panicked").
				WithOp(p.Name()).
				WithField("panic", fmt.Sprint(r)).
				Err()
		}
	}()
	return p.Process(ctx, cmd, db)
}

func (i *Interceptor) failed(msg string, err error, input string) {
	tl := i.logger.Translation()
	tl.Error(msg, err, "text", input)
	if tl.Enabled(log.LevelDebug) {
		tl.Debug(msg, "detail", fmt.Sprintf("%+v", err))
	}
}
