// main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariebrainware/medelle-reminder/config"
	"github.com/ariebrainware/medelle-reminder/endpoint"
	"github.com/ariebrainware/medelle-reminder/mailer"
	"github.com/ariebrainware/medelle-reminder/middleware"
	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/ariebrainware/medelle-reminder/reminder"
	"github.com/ariebrainware/medelle-reminder/store"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "medelle-reminder",
		Short:         "Return-visit reminder service for the clinic",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(sendTestCmd())

	if err := rootCmd.Execute(); err != nil {
		util.Logger().Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the daily reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep now and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")

			a, err := bootstrap(config.LoadConfig())
			if err != nil {
				return err
			}
			defer a.close()

			ref := time.Now()
			if date != "" {
				if ref, err = parseReferenceDate(date, a.dispatcher.Location()); err != nil {
					return err
				}
			}

			report, err := a.dispatcher.Sweep(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().String("date", "", "Reference date (YYYY-MM-DD) instead of today")
	return cmd
}

func sendTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-test",
		Short: "Send the test message to the operator address",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(config.LoadConfig())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.dispatcher.SendTest(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

// app holds the wiring shared by every command.
type app struct {
	cfg        *config.Config
	store      store.Store
	dispatcher *reminder.Dispatcher
}

func bootstrap(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := util.ConfigureLogger(cfg.AppEnv, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("configure logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	transport, err := mailer.New(cfg)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("mail transport: %w", err)
	}

	d := reminder.NewDispatcher(s, transport, reminder.Options{
		Location:      loc,
		ClinicName:    cfg.AppName,
		From:          cfg.MailFrom,
		CC:            cfg.MailCC,
		OperatorEmail: cfg.OperatorEmail,
		SendTimeout:   cfg.MailSendTimeout,
		Dedup:         cfg.ReminderDedup,
	})
	return &app{cfg: cfg, store: s, dispatcher: d}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		util.Logger().Warn().Err(err).Msg("failed to close store")
	}
}

// parseReferenceDate reads a YYYY-MM-DD date as noon of that day in loc.
func parseReferenceDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must use the YYYY-MM-DD format: %w", err)
	}
	return d.Add(12 * time.Hour), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setupRouter builds the HTTP surface. A limit without a Redis client counts test sends in process.
func setupRouter(s store.Store, d *reminder.Dispatcher, limit middleware.RateLimitConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.EndpointCallLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.StoreMiddleware(s))
	router.Use(middleware.DispatcherMiddleware(d))

	router.NoRoute(endpoint.NotFound)
	router.GET("/", endpoint.Index)
	router.GET("/healthz", endpoint.Healthz)

	api := router.Group("/api")
	{
		api.GET("/pacientes", endpoint.ListPatients)
		api.POST("/pacientes", endpoint.CreatePatient)
		api.DELETE("/pacientes/:id", endpoint.DeletePatient)
		api.POST("/testar-envio", middleware.RateLimiter(limit), endpoint.TestSendHandler)
	}
	return router
}

func rateLimitConfig(cfg *config.Config, rdb *redis.Client) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Limit:  cfg.TestSendRateLimit,
		Window: cfg.TestSendRateWindow,
		Client: rdb,
	}
}

func runServer() error {
	cfg := config.LoadConfig()
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	log := util.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreResetOnStart {
		if err := a.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		log.Warn().Msg("store reset on start")
	}

	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, test send rate limit kept in process")
	}

	sched, err := reminder.NewScheduler(a.dispatcher, cfg.ReminderAt, a.dispatcher.Location())
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	gin.SetMode(cfg.GinMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           setupRouter(a.store, a.dispatcher, rateLimitConfig(cfg, rdb)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("app", cfg.AppName).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server stopped")
	return nil
}
