package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailmind/mailmind/server"
	"github.com/mailmind/mailmind/workflow"
)

// portProbeLimit bounds how far above the configured port we search for
// a free one.
const portProbeLimit = 20

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the demo HTTP server with the websocket run feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.trainer.Start(ctx)
			defer a.trainer.Close()

			srv := server.New(a.checkpoints, a.trainer)
			srv.Attach(a.controller(workflow.WithObserver(srv.Broadcast)))

			listener, port, err := listen(a.cfg.Port)
			if err != nil {
				return err
			}
			log.Printf("[SERVER] listening on :%d", port)

			httpServer := &http.Server{Handler: srv.Routes()}
			go func() {
				<-ctx.Done()
				httpServer.Shutdown(context.Background())
			}()

			if err := httpServer.Serve(listener); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

// listen binds the configured port, probing upward when it is taken.
func listen(port int) (net.Listener, int, error) {
	for candidate := port; candidate < port+portProbeLimit; candidate++ {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", candidate))
		if err == nil {
			if candidate != port {
				log.Printf("[SERVER] port %d taken, using %d", port, candidate)
			}
			return listener, candidate, nil
		}
	}
	return nil, 0, fmt.Errorf("no free port in [%d, %d)", port, port+portProbeLimit)
}
