// Command gateway runs the Git Smart-HTTP gateway: it loads configuration,
// wires a backend driver (and optional S3 mirror) to the logic controller,
// and serves the four Smart HTTP routes over gin until signalled to stop.
// Grounded on the teacher's cmd/server/main.go bootstrap/shutdown sequence,
// with the SSH listener and database migrations dropped (this gateway has
// neither) and the HTTP server itself built directly on net/http so it can
// be shut down gracefully with context.WithTimeout.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bravo68web/githttpgw/internal/config"
	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gateway"
	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/bravo68web/githttpgw/internal/storage"
	"github.com/bravo68web/githttpgw/internal/transport/http/router"
	"github.com/bravo68web/githttpgw/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Logging.Level,
		Output:      logger.OutputConsole,
		Format:      cfg.Logging.Format,
		Development: cfg.IsDevelopment(),
		AddCaller:   true,
	}); err != nil {
		panic(err)
	}
	log := logger.Get().WithFields(logger.Component("gateway"))

	backend, err := buildDriver(cfg, log)
	if err != nil {
		log.Error("failed to build backend driver", logger.Error(err))
		os.Exit(1)
	}

	controller := gateway.NewController(backend)
	controller.OnError(func(err error) {
		log.Warn("driver probe raised", logger.Error(err))
	})

	engine := router.New(controller, []string{"*"})
	srv := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: engine,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting HTTP server", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", logger.Error(err))
		}
	}()

	<-done
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}
}

// buildDriver selects and constructs the driver.Driver named by
// cfg.Backend, wiring an S3 mirror onto driver.Local when cfg.Mirror is
// enabled.
func buildDriver(cfg *config.Config, log *logger.Logger) (driver.Driver, error) {
	if cfg.Backend.IsHTTP() {
		return driver.NewHTTP(cfg.Backend.UpstreamOrigin), nil
	}

	l := &driver.Local{
		OriginDir:       cfg.Backend.OriginDir,
		EnabledDefaults: enabledDefaults(cfg),
	}

	if cfg.Mirror.Enabled {
		mirror, err := storage.New(context.Background(), cfg.Backend.OriginDir, storage.Config{
			Bucket:       cfg.Mirror.Bucket,
			Region:       cfg.Mirror.Region,
			AccessKey:    cfg.Mirror.AccessKey,
			SecretKey:    cfg.Mirror.SecretKey,
			Endpoint:     cfg.Mirror.Endpoint,
			UsePathStyle: cfg.Mirror.UsePathStyle,
			Prefix:       cfg.Mirror.Prefix,
			Timeout:      cfg.Mirror.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		l.Mirror = mirror
		log.Info("repository mirror enabled", logger.String("bucket", cfg.Mirror.Bucket))
	}

	return l, nil
}

// enabledDefaults translates the two config flags into the map
// driver.Local falls back to when `git config --bool daemon.<cmd>` is
// unset in a repository.
func enabledDefaults(cfg *config.Config) map[gitproto.Service]bool {
	return map[gitproto.Service]bool{
		gitproto.ServiceUploadPack:  cfg.Backend.EnabledUploadPack,
		gitproto.ServiceReceivePack: cfg.Backend.EnabledReceivePack,
	}
}
