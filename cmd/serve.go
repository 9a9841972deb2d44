package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local progress agent and view API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger, server.Options{})
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", rt.cfg.Server.Addr())
			if err != nil {
				return fmt.Errorf("listen %s: %w", rt.cfg.Server.Addr(), err)
			}
			rt.logger.Info("serving", zap.String("addr", ln.Addr().String()))
			return app.Run(cmd.Context(), ln)
		},
	}
}
