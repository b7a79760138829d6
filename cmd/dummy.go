package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loadq/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a local target server with /fast, /medium, /slow, /spike, /error, /status/{code} and /drop",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeLog, err := setupLogging(viper.GetViper(), false)
		if err != nil {
			return err
		}
		defer closeLog()

		port, _ := cmd.Flags().GetInt("port")
		srv, err := dummy.Start(dummy.ServerConfig{Port: port, Log: log})
		if err != nil {
			return fmt.Errorf("starting dummy server: %w", err)
		}
		fmt.Printf("🎯 Dummy server listening on %s\n", srv.Addr())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
		case err := <-srv.Done():
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
}
