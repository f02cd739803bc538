package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/stepflow/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr        string
	Interval    time.Duration
	PollOnStart bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run workers, the poll timer and the HTTP control surface",
		Long: `Run the engine until interrupted.

Every --interval a poll instance is queued.  The HTTP server answers
  /invoke[?dev]            queue a poll now
  /status?instanceId=<id>  instance status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Hour, "poll interval (0 disables the timer)")
	cmd.Flags().BoolVar(&opts.PollOnStart, "poll-on-start", false, "queue a poll at startup")

	return cmd
}

func serve(ctx context.Context, opts *ServeOptions) error {
	srv, err := newService(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	rt := srv.Runtime()
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := rt.Shutdown(context.Background()); err != nil {
			log.Printf("serve: shutdown: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           server.Handler(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("serve: listening on %s", opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	poll := func() {
		anInstance, err := rt.Invoke(ctx, false)
		if err != nil {
			log.Printf("serve: failed to queue poll: %v", err)
			return
		}
		log.Printf("serve: queued %s", anInstance.ID)
	}
	if opts.PollOnStart {
		poll()
	}
	var tick <-chan time.Time
	if opts.Interval > 0 {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			poll()
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	}
}
