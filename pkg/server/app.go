package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	xhttp "PriceDrop/pkg/http"
	applogger "PriceDrop/pkg/logger"
)

// Pruner drops idle state; the rate limiter implements it.
type Pruner interface {
	Prune() int
}

type job struct {
	name string
	spec string
	fn   func()
}

// Option configures App.
type Option func(*App)

// WithJob runs fn on a cron spec ("@every 5m", "0 3 * * *") while the app
// is running. A job that is still running when its next tick fires is skipped.
func WithJob(name, spec string, fn func()) Option {
	return func(a *App) {
		a.jobs = append(a.jobs, job{name: name, spec: spec, fn: fn})
	}
}

// WithPruner runs p.Prune on spec.
func WithPruner(p Pruner, spec string) Option {
	return func(a *App) {
		WithJob("ratelimit-prune", spec, func() {
			if n := p.Prune(); n > 0 {
				a.l.Debug("rate limiter pruned", applogger.Int("buckets", n))
			}
		})(a)
	}
}

// App encapsulates the application lifecycle. Infrastructure clients are
// released by the cleanup returned from the injector, after Run returns.
type App struct {
	l          *applogger.Logger
	httpServer *xhttp.Server
	jobs       []job
}

func New(l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{l: l, httpServer: srv}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done, then shuts
// down gracefully.
func (a *App) RunContext(ctx context.Context) error {
	sched, err := a.scheduler()
	if err != nil {
		return err
	}
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	sched.Start()

	<-ctx.Done()
	a.l.Info("shutdown signal received")

	<-sched.Stop().Done()
	return a.shutdown()
}

func (a *App) scheduler() (*cron.Cron, error) {
	cl := cronLogger{a.l.With(applogger.String("component", "scheduler"))}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, j := range a.jobs {
		if _, err := c.AddFunc(j.spec, j.fn); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
	}
	return c, nil
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.l.Info("http server drained")
	return nil
}

// cronLogger adapts the app logger to cron.Logger. Cron's info chatter
// goes to debug.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(kv), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
