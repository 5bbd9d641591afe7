package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/parcelops/resolve/runtime/dispatch"
	"github.com/parcelops/resolve/runtime/telemetry"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the hosted agents over the task exchange endpoint",
		Long: `Serve exposes the hosted specialist agents over the JSON-RPC task
exchange endpoint so remote supervisors can delegate to them. Methods:
tasks/send, tasks/get, tasks/cancel, agent/card, agent/list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logContext(flags)
			svc, err := buildServices(ctx, flags, true)
			if err != nil {
				return err
			}
			defer svc.cleanup(ctx)

			rpc, err := dispatch.NewServer(svc.dispatcher, svc.directory, telemetry.NewClueLogger())
			if err != nil {
				return err
			}
			mux := http.NewServeMux()
			mux.Handle("/rpc", rpc)
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			srv := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Printf(ctx, "listening on %s", listen)
				errc <- srv.ListenAndServe()
			}()
			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errc:
				return err
			case sig := <-sigc:
				log.Printf(ctx, "shutting down on %s", sig)
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "Listen address for the JSON-RPC endpoint")
	return cmd
}
