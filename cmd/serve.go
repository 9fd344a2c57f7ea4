package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-email-queue/app/controller"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the queue processor",
	Long:  "Start the HTTP API for producers and operators, plus the background queue processor.",
	Run:   runServe,
}

// init registers the serve command.
func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires dependencies and runs HTTP plus the processor until a
// shutdown signal arrives.
func runServe(_ *cobra.Command, _ []string) {
	d, err := buildDeps(true)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	defer d.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.processor.Start(ctx); err != nil {
		d.log.Fatalf("Failed to start queue processor: %v", err)
	}

	emailController := controller.NewEmailController(d.emails)
	e := setupHTTPServer(emailController)

	go func() {
		httpAddr := net.JoinHostPort(d.cfg.HTTPHost, d.cfg.HTTPPort)
		d.log.Infof("Starting HTTP server on %s", httpAddr)
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			d.log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	d.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		d.log.Errorf("HTTP shutdown error: %v", err)
	}
	d.processor.Stop()

	d.log.Info("Server stopped")
}

// setupHTTPServer configures the Echo HTTP server and routes.
func setupHTTPServer(emailController *controller.EmailController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	email := e.Group("/email")
	email.POST("/enqueue", emailController.Enqueue)
	email.GET("/stats", emailController.Stats)
	email.POST("/retry", emailController.Retry)
	email.POST("/cancel", emailController.Cancel)
	email.POST("/cleanup", emailController.Cleanup)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return e
}
