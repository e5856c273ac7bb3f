package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/geoflow/api"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the runtime and the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv, err := newService(ctx, cmd)
			if err != nil {
				return err
			}
			defer srv.Close()
			port, _ := cmd.Flags().GetInt("port")
			if port == 0 {
				port = srv.Config().API.Port
			}
			runtime := srv.Runtime()
			if err = runtime.Start(ctx); err != nil {
				return err
			}
			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				log.Printf("geoflow: serving on :%d", port)
				return api.New(runtime).Listen(ctx, port)
			})
			group.Go(func() error {
				<-ctx.Done()
				return runtime.Shutdown(context.WithoutCancel(ctx))
			})
			return group.Wait()
		},
	}
	cmd.Flags().IntP("port", "p", 0, "listen port (overrides config)")
	return cmd
}
