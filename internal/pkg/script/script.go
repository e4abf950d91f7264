package script

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"gpo-autofish/internal/pkg/sleeper"
)

// Input is the subset of the actuator a script drives.
type Input interface {
	ClickAt(ctx context.Context, p image.Point) error
	RightClickAt(ctx context.Context, p image.Point) error
	KeyTap(key string)
	Type(text string)
}

// Operation is one step of a script.
type Operation func(ctx context.Context) error

type Script interface {
	TapOnce(key string) Operation
	Click(p image.Point) Operation
	RightClick(p image.Point) Operation
	Type(text string) Operation
	Wait(d time.Duration) Operation
	ExecTask(task func(ctx context.Context) error) Operation
	Log(message string, fields ...zap.Field) Operation
}

type DefaultScript struct {
	input Input
	log   *zap.Logger
}

func NewDefaultScript(input Input, log *zap.Logger) Script {
	return &DefaultScript{input: input, log: log}
}

func (s *DefaultScript) TapOnce(key string) Operation {
	return func(context.Context) error {
		s.input.KeyTap(key)
		return nil
	}
}

func (s *DefaultScript) Click(p image.Point) Operation {
	return func(ctx context.Context) error {
		return s.input.ClickAt(ctx, p)
	}
}

func (s *DefaultScript) RightClick(p image.Point) Operation {
	return func(ctx context.Context) error {
		return s.input.RightClickAt(ctx, p)
	}
}

func (s *DefaultScript) Type(text string) Operation {
	return func(context.Context) error {
		s.input.Type(text)
		return nil
	}
}

func (s *DefaultScript) Wait(d time.Duration) Operation {
	return func(ctx context.Context) error {
		return sleeper.Sleep(ctx, d)
	}
}

func (s *DefaultScript) ExecTask(task func(ctx context.Context) error) Operation {
	return task
}

func (s *DefaultScript) Log(message string, fields ...zap.Field) Operation {
	return func(context.Context) error {
		s.log.Debug(message, fields...)
		return nil
	}
}

// Run executes ops in order. ctx is checked before every step and the
// first cancelled check or failing step ends the run.
func Run(ctx context.Context, ops []Operation) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op(ctx); err != nil {
			return err
		}
	}
	return nil
}
