package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/delaneyj/bindparty/pkg/logging"
	"github.com/delaneyj/bindparty/ui"
	"github.com/delaneyj/bindparty/ui/textdom"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

type refreshTestConfig struct {
	name       string
	sessions   int // sessions rendering the refreshable
	sites      int // sites per session
	items      int // labels built by each body
	async      bool
	iterations int64
}

func main() {
	log.Print("Starting refresh benchmark, please wait...")
	defer log.Print("Finished refresh benchmark")

	cfgs := []refreshTestConfig{
		{name: "single label", sessions: 1, sites: 1, items: 1, iterations: 20000},
		{name: "list", sessions: 1, sites: 1, items: 100, iterations: 2000},
		{name: "many sites", sessions: 1, sites: 100, items: 10, iterations: 200},
		{name: "many sessions", sessions: 50, sites: 2, items: 10, iterations: 200},
		{name: "async list", sessions: 1, sites: 1, items: 100, async: true, iterations: 2000},
		{name: "async many sites", sessions: 10, sites: 10, items: 10, async: true, iterations: 200},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"test", "mode", "sessions", "sites", "items", "nTimes", "time", "refreshes/s", "frames",
	})

	testRepeats := 3
	for _, cfg := range cfgs {
		log.Printf("Running '%s' config", cfg.name)

		best := time.Duration(1<<63 - 1)
		var frames int
		for i := 0; i < testRepeats; i++ {
			d, f := run(cfg)
			if d < best {
				best, frames = d, f
			}
		}

		mode := "sync"
		if cfg.async {
			mode = "async"
		}
		rate := float64(cfg.iterations) / best.Seconds()
		table.Append([]string{
			cfg.name,
			mode,
			fmt.Sprint(cfg.sessions),
			fmt.Sprint(cfg.sites),
			fmt.Sprint(cfg.items),
			humanize.Comma(cfg.iterations),
			fmt.Sprint(best),
			humanize.Comma(int64(rate)),
			humanize.Comma(int64(frames)),
		})
	}
	table.Render()
}

func run(cfg refreshTestConfig) (time.Duration, int) {
	ctx := context.Background()
	logger := logging.Discard()

	var tick int
	body := func(ctx context.Context, b *ui.Builder, n int) error {
		_, err := textdom.Column(b, func() error {
			for i := 0; i < n; i++ {
				textdom.Label(b, fmt.Sprintf("%d/%d", tick, i))
			}
			return nil
		})
		return err
	}
	var r *ui.Refreshable[int]
	if cfg.async {
		r = ui.NewAsync(body, ui.WithName(cfg.name))
	} else {
		r = ui.New(body, ui.WithName(cfg.name))
	}

	docs := make([]*textdom.Document, cfg.sessions)
	for i := range docs {
		doc := textdom.New(textdom.WithLogger(logger))
		s := ui.NewSession(doc, doc.Root(), ui.WithSessionLogger(logger))
		defer s.Close()
		err := s.Do(ctx, func(ctx context.Context, b *ui.Builder) error {
			for j := 0; j < cfg.sites; j++ {
				if err := r.Render(ctx, b, cfg.items); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
		docs[i] = doc
	}

	start := time.Now()
	for i := int64(0); i < cfg.iterations; i++ {
		tick++
		if err := r.Refresh(ctx); err != nil {
			log.Fatal(err)
		}
		// async refreshes would otherwise pile up in the site queues
		r.Wait()
	}
	elapsed := time.Since(start)

	var frames int
	for _, doc := range docs {
		frames += len(doc.Frames())
	}
	return elapsed, frames
}
