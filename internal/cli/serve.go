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

	"github.com/spf13/cobra"

	"mock-interview/internal/activity"
	"mock-interview/internal/httpserver"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API for the browser front-end",
	Long: `Start the HTTP API. Each browser session gets its own interview; events are
streamed over a websocket and speech results are reported back by the client.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default SERVER_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := buildStack()
	if err != nil {
		return err
	}
	defer st.store.Close()

	port := st.app.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srv := httpserver.NewServer(httpserver.Deps{
		App:       st.app,
		Interview: st.interview,
		Questions: st.questions,
		InferRole: st.questions.Bank().InferRole,
		Store:     st.store,
		Metrics:   st.metrics,
		Tracker:   activity.NewTracker(),
	})
	e := httpserver.New(srv)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      e,
		ReadTimeout:  st.app.Server.ReadTimeout,
		WriteTimeout: st.app.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.Run(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Printf("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), st.app.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
	return nil
}
