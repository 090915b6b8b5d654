// Logic related to runtime counters: live session and subscription counts,
// fan-out totals, memory usage etc. Counters are published twice, through
// expvar for ad-hoc inspection and through Prometheus for scraping. The
// updates happen in a separate go routine to avoid locking on main logic
// routines.

package main

import (
	"expvar"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zentrio/fabric/server/logs"
)

type varUpdate struct {
	// Name of the variable to update.
	varname string
	// Integer value to publish.
	count int64
	// Treat the count as an increment as opposite to the final value.
	inc bool
}

// Authentication failures by category, e.g. "missing", "expired".
var promAuthFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "auth_failures_total",
		Help:      "Rejected connection attempts by failure category.",
	},
	[]string{"category"},
)

// Initialize stats reporting through expvar and Prometheus.
func statsInit(mux *http.ServeMux, expvarPath, promPath string) {
	globals.statsUpdate = make(chan *varUpdate, 1024)

	start := time.Now()
	expvar.Publish("Uptime", expvar.Func(func() any {
		return time.Since(start).Seconds()
	}))
	expvar.Publish("NumGoroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	if expvarPath != "" && expvarPath != "-" {
		mux.Handle(expvarPath, expvar.Handler())
		logs.Info.Printf("stats: variables exposed at '%s'", expvarPath)
	}

	if promPath != "" && promPath != "-" {
		prometheus.MustRegister(promAuthFailures)
		mux.Handle(promPath, promhttp.Handler())
		logs.Info.Printf("stats: prometheus metrics exposed at '%s'", promPath)
	}

	go statsUpdater()
}

// Register integer variable and mirror it as a Prometheus gauge. Don't
// check for initialization.
func statsRegisterInt(name string) {
	v := new(expvar.Int)
	expvar.Publish(name, v)

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "fabric",
			Name:      promSnakeCase(name),
		},
		func() float64 { return float64(v.Value()) },
	))
}

// Async publish int variable.
func statsSet(name string, val int64) {
	if globals.statsUpdate != nil {
		select {
		case globals.statsUpdate <- &varUpdate{name, val, false}:
		default:
		}
	}
}

// Async publish an increment (decrement) to int variable.
func statsInc(name string, val int) {
	if globals.statsUpdate != nil {
		select {
		case globals.statsUpdate <- &varUpdate{name, int64(val), true}:
		default:
		}
	}
}

// Count one rejected connection attempt.
func statsIncAuthFailure(category string) {
	promAuthFailures.WithLabelValues(category).Inc()
}

// Stop publishing stats.
func statsShutdown() {
	if globals.statsUpdate != nil {
		globals.statsUpdate <- nil
	}
}

// The go routine which actually publishes stats updates.
func statsUpdater() {
	for upd := range globals.statsUpdate {
		if upd == nil {
			globals.statsUpdate = nil
			// Don't care to close the channel.
			break
		}

		// Handle var update
		if ev := expvar.Get(upd.varname); ev != nil {
			// Intentional panic if the ev is not *expvar.Int.
			intvar := ev.(*expvar.Int)
			if upd.inc {
				intvar.Add(upd.count)
			} else {
				intvar.Set(upd.count)
			}
		} else {
			panic("stats: update to unknown variable " + upd.varname)
		}
	}

	logs.Info.Println("stats: shutdown")
}

// promSnakeCase converts an expvar name like "LiveSessions" to the
// prometheus convention "live_sessions".
func promSnakeCase(name string) string {
	out := make([]byte, 0, len(name)+4)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
