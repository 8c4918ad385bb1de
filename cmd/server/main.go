package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidgrab-go/api"
	"github.com/yourusername/vidgrab-go/api/handlers"
	"github.com/yourusername/vidgrab-go/internal/app"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/extractor"
	"github.com/yourusername/vidgrab-go/internal/infrastructure"
	"github.com/yourusername/vidgrab-go/internal/plugin"
	"github.com/yourusername/vidgrab-go/internal/pool"
	"github.com/yourusername/vidgrab-go/internal/portable"
	"github.com/yourusername/vidgrab-go/pkg/logger"
)

var version = "dev"

var (
	serverMode   = flag.Bool("server-mode", false, "Run in the foreground instead of detaching")
	configPath   = flag.String("config", "", "Path to config.yaml")
	portableMode = flag.Bool("portable", false, "Keep all data next to the executable")
)

func main() {
	flag.Parse()

	if !*serverMode {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary in server mode, detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := append([]string{"-server-mode"}, os.Args[1:]...)
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, paths, err := app.LoadConfig(*configPath, portable.Options{ForcePortable: *portableMode})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize multi-logger: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting VidGrab server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Bool("portable", paths.IsPortable()),
		zap.String("extractor_backend", config.Extractor.Backend))

	if err := createDirectories(config, paths); err != nil {
		return err
	}

	if paths.IsPortable() {
		if migrated, err := paths.MigrateFromInstalled(paths.InstalledDataDir()); err != nil {
			log.Warn("Failed to migrate installed data", zap.Error(err))
		} else if migrated {
			log.Info("Migrated installed data into portable directory")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connPool, err := pool.NewManager(config.Network, logger.Tee(log, multiLog, logger.CategoryPool))
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := connPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connection pool: %w", err)
	}
	defer connPool.Stop()

	plugins, err := plugin.NewManager(config.Extractor, log)
	if err != nil {
		return fmt.Errorf("failed to create plugin manager: %w", err)
	}
	defer plugins.Close()
	if err := plugins.RegisterAll(extractor.Builtin(newProber(config.Extractor, log)), config.Extractor.Disabled); err != nil {
		return fmt.Errorf("failed to register extractors: %w", err)
	}

	repo, err := infrastructure.NewSQLiteDownloadRepository(config.Queue.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	notifier := infrastructure.NewNotificationService(config.Notification, log)

	// yt-dlp accepts every URL and must stay last
	downloaders := []domain.Downloader{
		infrastructure.NewHLSDownloader(connPool, config.Download, log),
		infrastructure.NewHTTPDownloader(connPool, config.Download, log),
		infrastructure.NewYTDLPDownloader(config.Extractor, config.Download, config.Logging.LogsDir, multiLog, log),
	}

	hub := app.NewProgressHub()
	defer hub.Close()

	downloadMgr := app.NewDownloadManager(repo, plugins, downloaders, notifier, config.Download, hub, log, multiLog)
	queueMgr := app.NewQueueManager(repo, downloadMgr, plugins, notifier, config.Queue, multiLog)

	if config.Download.AutoStartWorkers {
		if err := queueMgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start queue manager: %w", err)
		}
	}

	handlers.Version = version
	router := api.SetupRouter(api.Deps{
		QueueMgr:         queueMgr,
		DownloadMgr:      downloadMgr,
		Plugins:          plugins,
		Pool:             connPool,
		Paths:            paths,
		Hub:              hub,
		Logger:           log,
		MultiLogger:      multiLog,
		FilenameTemplate: config.Download.FilenameTemplate,
		Debug:            config.Logging.Level == "debug",
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// a nil channel never fires
	var autoExit <-chan struct{}
	if config.Queue.AutoExitOnEmpty && queueMgr.IsRunning() {
		autoExit = queueMgr.Done()
	}

	var runErr error
	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case <-autoExit:
		log.Info("Queue manager triggered auto-exit (all downloads complete)")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if queueMgr.IsRunning() {
		if err := queueMgr.Stop(); err != nil {
			log.Error("Error stopping queue manager", zap.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return runErr
}

// newProber picks the metadata source for the built-in extractors
func newProber(config domain.ExtractorConfig, log *zap.Logger) domain.MediaProber {
	if config.Backend == "ytdlp" {
		return infrastructure.NewYTDLPProber(config, log)
	}
	return extractor.NewTemplateProber()
}

func createDirectories(config *domain.Config, paths *portable.Manager) error {
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create application directories: %w", err)
	}

	for _, dir := range []string{
		config.Download.BaseDir,
		config.Download.CompletedDir(),
		config.Download.IncomingDir(),
		config.Logging.LogsDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
