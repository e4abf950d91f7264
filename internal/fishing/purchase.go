package fishing

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"

	"go.uber.org/zap"

	"gpo-autofish/internal/observability"
	"gpo-autofish/internal/pkg/script"
	"gpo-autofish/internal/state"
)

var ErrPointsMissing = errors.New("purchase points not calibrated")

// purchase runs the bait purchase macro:
// menu key, point 1, point 2, amount, point 1, point 3, point 2, right click point 4.
func (b *Bot) purchase(ctx context.Context) error {
	cfg := b.store.Get()
	p := cfg.Purchase

	if missing := p.MissingPoints(); len(missing) > 0 {
		b.log.Warn("Auto purchase aborted, points not set.", zap.Ints("missing", missing))
		return fmt.Errorf("%w: %v", ErrPointsMissing, missing)
	}
	pt := func(i int) image.Point {
		v, _ := p.Point(i)
		return v.ImagePoint()
	}
	p1, p2, p3, p4 := pt(1), pt(2), pt(3), pt(4)
	amount := strconv.Itoa(p.Amount)

	if err := b.machine.Enter(state.PurchasingDetails{Sequence: "auto_purchase", LoopsPerPurchase: p.LoopsPerPurchase}); err != nil {
		return err
	}

	s := b.script
	enter := func(d state.Details) script.Operation {
		return s.ExecTask(func(context.Context) error { return b.machine.Enter(d) })
	}
	click := func(action string, at image.Point) []script.Operation {
		return []script.Operation{
			enter(state.ClickingDetails{Action: action, Point: at}),
			s.Click(at),
			s.Wait(p.ClickDelay),
		}
	}

	ops := []script.Operation{
		enter(state.MenuOpeningDetails{Action: "pressing_menu_key", Amount: p.Amount}),
		s.Log("Opening the shop menu.", zap.String("key", p.MenuKey)),
		s.TapOnce(p.MenuKey),
		s.Wait(p.DelayAfterKey),
	}
	ops = append(ops, click("click_point_1", p1)...)
	ops = append(ops, click("click_point_2", p2)...)
	ops = append(ops,
		enter(state.TypingDetails{Action: "typing_amount", Amount: p.Amount}),
		s.Type(amount),
		s.Wait(p.AfterTypeDelay),
	)
	ops = append(ops, click("click_point_1_confirm", p1)...)
	ops = append(ops, click("click_point_3", p3)...)
	ops = append(ops, click("click_point_2_final", p2)...)
	ops = append(ops,
		enter(state.ClickingDetails{Action: "right_click_point_4_close", Point: p4}),
		s.RightClick(p4),
		s.Wait(p.ClickDelay),
	)

	if err := script.Run(ctx, ops); err != nil {
		b.log.Warn("Auto purchase aborted.", zap.Error(err))
		if ctx.Err() == nil {
			b.machine.Reset(state.IdleDetails{Action: state.ActionPurchaseAborted, Error: err.Error()})
		}
		return err
	}

	b.log.Info("Auto purchase complete.", observability.Important, zap.Int("amount", p.Amount))
	b.notifier.SendPurchase(p.Amount)
	return nil
}
