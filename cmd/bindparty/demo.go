package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/pkg/errs"
	"github.com/delaneyj/bindparty/ui"
	"github.com/delaneyj/bindparty/ui/textdom"
)

// cart is a plain model the page binds to. Its fields are written directly
// on the session's flow, so the demo runs the synchronization passes there
// too instead of starting the registry loop.
type cart struct {
	Count int
	Busy  bool
}

func demo(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	handler := &errs.LogHandler{Logger: logger}

	reg := binding.NewRegistry(
		binding.WithInterval(cfg.SyncInterval),
		binding.WithLogger(logger),
		binding.WithErrorHandler(handler),
	)
	frame := 0
	doc := textdom.New(
		textdom.WithLogger(logger),
		textdom.OnFrame(func(markup string) {
			frame++
			fmt.Fprintf(os.Stdout, "frame %d: %s\n", frame, markup)
		}),
	)
	session := ui.NewSession(doc, doc.Root(),
		ui.WithSessionLogger(logger),
		ui.WithSessionErrorHandler(handler),
	)
	defer session.Close()

	model := &cart{}
	items := ui.NewAsync(func(ctx context.Context, b *ui.Builder, n int) error {
		select {
		case <-time.After(cfg.Demo.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		_, err := textdom.Column(b, func() error {
			for i := range n {
				textdom.Label(b, fmt.Sprintf("item %d", i+1))
			}
			return nil
		})
		return err
	}, ui.WithName("items"))

	var btn *textdom.Element
	err = session.Do(ctx, func(ctx context.Context, b *ui.Builder) error {
		_, err := textdom.Row(b, func() error {
			count := textdom.Label(b, "")
			count.TextAttr(reg)
			if err := reg.BindFrom(
				binding.Attr(count, "text"),
				binding.Field(model, "Count"),
				binding.Func(func(n int) string { return fmt.Sprintf("%d in cart", n) }),
			); err != nil {
				return err
			}

			btn = textdom.Button(b, "add", func(ctx context.Context, b *ui.Builder) error {
				model.Count++
				return nil
			})
			return ui.NewDisableable(reg, b.Target(), btn).BindEnabledFrom(
				binding.Field(model, "Busy"),
				binding.Func(func(busy bool) bool { return !busy }),
			)
		})
		if err != nil {
			return err
		}
		return items.Render(ctx, b, cfg.Demo.Items)
	})
	if err != nil {
		return err
	}

	for range 2 {
		if err := btn.Click(ctx, session); err != nil {
			return err
		}
	}
	settle(reg, session)

	model.Busy = true
	settle(reg, session)
	if err := btn.Click(ctx, session); err != nil {
		return err
	}
	model.Busy = false
	settle(reg, session)

	if err := items.RefreshWith(ctx, cfg.Demo.Items+2); err != nil {
		return err
	}
	items.Wait()

	st, _ := reg.LastStats()
	logger.Info("demo finished",
		slog.Int("frames", frame),
		slog.Int("count", model.Count),
		slog.Int("links", st.Links),
		slog.Uint64("passes", reg.Passes()),
		slog.Duration("interval", reg.Interval()),
	)
	return nil
}

// settle runs a synchronization pass and delivers what it changed.
func settle(reg *binding.Registry, s *ui.Session) {
	reg.Sync()
	s.Flush()
}
