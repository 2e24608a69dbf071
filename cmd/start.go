package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/resp3d/internal/admin"
	"github.com/luma/resp3d/internal/env"
	"github.com/luma/resp3d/internal/meta"
	"github.com/luma/resp3d/storage"
	"github.com/luma/resp3d/transport"
)

const shutdownTimeout = 5 * time.Second

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for tcp clients on
	port int

	// Share the port between several listeners with SO_REUSEPORT
	reuseport bool

	// Number of tcp listeners, 0 for one per CPU
	numListeners int

	// JSON store backup restored at start and written at shutdown
	snapshotFile string

	// Log every message read and written
	trace bool
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.IntVarP(&port, "port", "p", 6379, "The port to listen client connections on")
	flags.StringVar(&httpPort, "http-port", "6380", "The port to listen to HTTP requests on")
	flags.StringVarP(&host, "host", "a", "0.0.0.0", "The host to listen on")
	flags.BoolVar(&reuseport, "reuseport", true, "Accept connections on several listeners sharing the port")
	flags.IntVar(&numListeners, "listeners", 0, "The number of listeners, defaults to one per CPU")
	flags.StringVar(&snapshotFile, "snapshot", "", "A JSON file to restore the store from and back it up to on shutdown")
	flags.BoolVar(&trace, "trace", false, "Log every message read and written")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the resp3d server",
	Long: `Start up the resp3d server

Usage
	resp3d start
	resp3d start --port 6379 --snapshot data.json

Limits and logging are configured through RESP3D_ environment variables,
optionally set in .env.local.

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf)
		if err != nil {
			return err
		}
		defer log.Sync()

		log.Info("Starting", meta.GetInfo().Fields()...)

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		store := storage.NewInmemoryStore(storage.WithLogger(log.Named("store")))
		defer store.Close()
		if snapshotFile != "" {
			if err := restoreSnapshot(store, snapshotFile); err != nil {
				return err
			}
			log.Info("Restored snapshot", zap.String("file", snapshotFile))
		}

		router := admin.NewRouter(admin.Options{
			Debug: conf.DebugHTTP,
			Store: store,
			Log:   log.Named("http"),
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		tcp := transport.NewTCP(transport.Options{
			Host:           host,
			Port:           port,
			Reuseport:      reuseport,
			NumListeners:   numListeners,
			MaxPayloadSize: conf.MaxPayload,
			MaxDepth:       conf.MaxDepth,
			RateLimit:      conf.RateLimit,
			RateBurst:      conf.RateBurst,
			Trace:          trace,
			Store:          store,
			Log:            log.Named("transport"),
		})

		// A signal only stops new connections, Shutdown below drains the
		// open ones.
		if err := tcp.Start(ctx); err != nil {
			return err
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.Stringer("addr", tcp.Addr()),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(ctx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := tcp.Shutdown(ctx); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		if snapshotFile != "" {
			if err := writeSnapshot(store, snapshotFile); err != nil {
				log.Error("Failed to write snapshot", zap.String("file", snapshotFile), zap.Error(err))
				return err
			}
			log.Info("Wrote snapshot", zap.String("file", snapshotFile))
		}

		log.Info("Exiting")
		return nil
	},
}

func restoreSnapshot(store storage.Store, filename string) error {
	values, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	return store.Restore(values)
}

// writeSnapshot writes the backup to a temporary file and renames it over
// filename.
func writeSnapshot(store storage.Store, filename string) error {
	values, err := store.Backup()
	if err != nil {
		return err
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, values, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, filename)
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
