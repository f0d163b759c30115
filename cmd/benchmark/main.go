package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/pkg/logging"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
)

var profile = flag.String("profile", "default.pgo", "write a cpu profile to this file, empty to disable")

func main() {
	flag.Parse()

	if *profile != "" {
		f, err := os.Create(*profile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkPropagate(false)
	benchmarkSync(false)

	benchmarkPropagate(true)
	benchmarkSync(true)
}

var (
	ww    = []int{1, 10, 100, 1_000}
	hh    = []int{1, 10, 100}
	iters = 100
)

func addOne(v int) int {
	return v + 1
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "links", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendRow(tbl table.Writer, name string, links int, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRows([]table.Row{
		{
			name,
			links,
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
		},
	})
}

// benchmarkPropagate times a write to one attribute fanned out to w chains of
// h transformed links.
func benchmarkPropagate(shouldRender bool) {
	tbl := newTable("Attribute propagation")

	for _, w := range ww {
		for _, h := range hh {
			reg := binding.NewRegistry(binding.WithLogger(logging.Discard()))
			src := binding.NewAttribute(reg, nil, "src", 0)
			keep := make([]*binding.Attribute[int], 0, w*h)

			for i := 0; i < w; i++ {
				prev := src
				for j := 0; j < h; j++ {
					next := binding.NewAttribute(reg, nil, fmt.Sprintf("n%d_%d", i, j), 0)
					if err := reg.BindTo(prev.Ref(), next.Ref(), binding.Func(addOne)); err != nil {
						log.Fatal(err)
					}
					keep = append(keep, next)
					prev = next
				}
			}

			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set(src.Value() + 1)
				tach.AddTime(time.Since(start))
			}

			if want := src.Value() + h; keep[len(keep)-1].Value() != want {
				log.Fatalf("propagate %dx%d: got %d, want %d", w, h, keep[len(keep)-1].Value(), want)
			}
			appendRow(tbl, fmt.Sprintf("propagate: %d * %d", w, h), reg.Len(), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

type row struct {
	Value int
}

// benchmarkSync times a periodic pass over n field links of which a fraction
// changed since the previous pass.
func benchmarkSync(shouldRender bool) {
	tbl := newTable("Sync pass")

	for _, n := range []int{10, 100, 1_000, 10_000} {
		for _, dirty := range []int{0, 10, 100} {
			reg := binding.NewRegistry(binding.WithLogger(logging.Discard()))
			rows := make([]*row, n)
			mirrors := make([]*binding.Attribute[int], n)
			for i := range rows {
				rows[i] = &row{}
				mirrors[i] = binding.NewAttribute(reg, nil, "mirror", 0)
				if err := reg.BindFrom(mirrors[i].Ref(), binding.Field(rows[i], "Value"), nil); err != nil {
					log.Fatal(err)
				}
			}

			changed := n * dirty / 100
			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				for j := 0; j < changed; j++ {
					rows[j].Value++
				}
				start := time.Now()
				st := reg.Sync()
				tach.AddTime(time.Since(start))
				if st.Writes != changed {
					log.Fatalf("sync %d/%d%%: wrote %d links, want %d", n, dirty, st.Writes, changed)
				}
			}
			runtime.KeepAlive(mirrors)
			appendRow(tbl, fmt.Sprintf("sync: %d%% dirty", dirty), reg.Len(), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
