// Package cli implements the storefront command-line client: auth
// commands, catalog browsing, cart mutation, and a local mock backend.
// Each invocation wires the full store stack (config, durable state,
// HTTP client, session, cart, catalog) and restores any persisted
// session before running the command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/quickbasket/storefront-go/cache"
	"github.com/quickbasket/storefront-go/cart"
	"github.com/quickbasket/storefront-go/catalog"
	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/config"
	"github.com/quickbasket/storefront-go/notify"
	sfotel "github.com/quickbasket/storefront-go/otel"
	"github.com/quickbasket/storefront-go/session"
	"github.com/quickbasket/storefront-go/statestore"

	"go.opentelemetry.io/otel"
)

// app holds the wired store stack for one command invocation.
type app struct {
	cfg      config.Config
	cache    *cache.Cache
	bus      notify.Bus
	persist  *statestore.Store
	api      *client.Client
	sessions *session.Store
	cart     *cart.Store
	catalog  *catalog.Service

	providers *sfotel.Providers
	tracing   *sfotel.TracingHandler
	toastDone chan struct{}
}

// appOptions controls optional wiring per command.
type appOptions struct {
	// restore loads any persisted session before the command runs.
	restore bool
	// toasts renders notifications to stderr while the command runs.
	toasts bool
}

// buildApp wires the full stack from the discovered configuration.
func buildApp(ctx context.Context, configPath string, opts appOptions) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		cache: cache.New(),
		bus:   notify.NewMemBus(notify.MemBusConfig{}),
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath, err = statestore.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	a.persist, err = statestore.Open(statePath)
	if err != nil {
		return nil, err
	}

	a.api, err = client.New(client.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		TokenSource: func() string {
			if a.sessions == nil {
				return ""
			}
			return a.sessions.Token()
		},
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.sessions, err = session.New(session.Config{
		API:     a.api,
		Persist: a.persist,
		Bus:     a.bus,
		Cache:   a.cache,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.cart, err = cart.New(cart.Config{
		API:     a.api,
		Bus:     a.bus,
		Persist: a.persist,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.sessions.OnTeardown(a.cart.Teardown)

	a.catalog = catalog.New(a.api, a.cache, catalog.TTLs{
		Categories: cfg.Cache.CategoriesTTL,
		Products:   cfg.Cache.ProductsTTL,
		Search:     cfg.Cache.SearchTTL,
		PriceRange: cfg.Cache.PriceRangeTTL,
	})

	if cfg.OTLPEndpoint != "" {
		a.providers, err = sfotel.Setup(ctx, cfg.OTLPEndpoint, "storefront-cli")
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.tracing = sfotel.NewTracingHandler(otel.Tracer("storefront-cli"))
		go a.tracing.Run(a.bus.SubscribeAll())
	}

	if opts.toasts {
		a.toastDone = make(chan struct{})
		go a.renderToasts(os.Stderr, a.bus.SubscribeAll())
	}

	if opts.restore {
		if _, err := a.sessions.Restore(ctx); err != nil {
			// A corrupt stored session falls back to anonymous.
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if a.sessions.State() == session.StateAuthenticated {
			_, _ = a.cart.RestoreSnapshot(ctx)
		}
	}

	return a, nil
}

// renderToasts prints notification events until the bus closes.
func (a *app) renderToasts(w io.Writer, sub notify.Subscription) {
	defer close(a.toastDone)
	for e := range sub.Events() {
		if e.Stage == notify.StageStarted {
			continue
		}
		switch e.Level {
		case notify.LevelError:
			fmt.Fprintf(w, "[%s] %s: %s\n", e.Level, e.Message, e.Err)
		default:
			fmt.Fprintf(w, "[%s] %s\n", e.Level, e.Message)
		}
	}
}

// Close releases everything the app holds, in reverse wiring order.
func (a *app) Close(ctx context.Context) {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.toastDone != nil {
		<-a.toastDone
	}
	if a.tracing != nil {
		a.tracing.FlushOpen()
	}
	if a.providers != nil {
		_ = a.providers.Shutdown(ctx)
	}
	if a.persist != nil {
		_ = a.persist.Close()
	}
}

// requireAuth converts an anonymous state into a friendly exit error.
func (a *app) requireAuth() error {
	if a.sessions.State() != session.StateAuthenticated {
		return exitError(exitAuth, "not signed in (run: storefront login)")
	}
	return nil
}
