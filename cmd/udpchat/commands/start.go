package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/api"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/metrics"
	promexport "github.com/agonych/udp-chat/pkg/metrics/prometheus"
	"github.com/agonych/udp-chat/pkg/server"
	"github.com/agonych/udp-chat/pkg/store"
)

var (
	daemonize bool
	pidFile   string
	logFile   string
)

var startCmd = &cobra.Command{
	Use:   "start [ip] [port]",
	Short: "Start the UDPChat-AI server",
	Long: `Start the UDPChat-AI server with the specified configuration.

The optional positional arguments override the listen address from the
configuration file, in the order ip then port.

By default, the server runs in the foreground. Use --daemon to detach
and run in the background, logging to a file under $XDG_STATE_HOME.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/udpchat/config.yaml.

Examples:
  # Start in foreground on the configured address
  udpchat start

  # Override the listen address from the command line
  udpchat start 0.0.0.0 9999

  # Start detached
  udpchat start --daemon

  # Start with custom config file
  udpchat start --config /etc/udpchat/config.yaml

  # Start with environment variable overrides
  UDPCHAT_LOGGING_LEVEL=DEBUG udpchat start`,
	Args: cobra.MaximumNArgs(2),
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&daemonize, "daemon", "d", false, "Run detached in the background")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/udpchat/udpchat.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/udpchat/udpchat.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if daemonize {
		return startDaemon(args)
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := applyListenArgs(cfg, args); err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "udpchat",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "udpchat",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("UDPChat-AI - Encrypted UDP group chat server")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics (if enabled)
	var serverMetrics metrics.ServerMetrics
	if cfg.Metrics.MetricsEnabled() {
		metrics.InitRegistry()
		serverMetrics = promexport.NewServerMetrics()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Initialize the store
	st, err := store.New(cfg.Database.ToStoreConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	if serverMetrics != nil {
		if err := st.InstrumentMetrics(promexport.NewStoreMetrics()); err != nil {
			return fmt.Errorf("failed to instrument store: %w", err)
		}
	}

	// Create the chat server (loads or generates the RSA identity)
	chatSrv, err := server.New(cfg, st, serverMetrics)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start the ops API server (if enabled - defaults to true)
	if cfg.API.APIEnabled() {
		apiServer := api.NewServer(cfg.API, chatSrv, st)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("Ops API error", "error", err)
			}
		}()
		logger.Info("Ops API enabled", "port", apiServer.Port())
	} else {
		logger.Info("Ops API disabled")
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start the UDP server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- chatSrv.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// A second signal skips the graceful drain
		go func() {
			<-sigChan
			logger.Warn("Second signal received, forcing exit")
			os.Exit(1)
		}()

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		signal.Stop(sigChan)
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// applyListenArgs overrides the configured listen address with the
// positional ip and port arguments.
func applyListenArgs(cfg *config.Config, args []string) error {
	if len(args) >= 1 {
		cfg.Server.Host = args[0]
	}
	if len(args) >= 2 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %s", args[1])
		}
		cfg.Server.Port = port
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// startDaemon starts the server as a background daemon process.
func startDaemon(listenArgs []string) error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Set default PID file if not specified
	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(stateDir, "udpchat.pid")
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				// Check if process is still running
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("udpchat is already running (PID %d)\nStop the running instance first", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	// Set default log file if not specified
	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(stateDir, "udpchat.log")
	}

	// Get the executable path
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Build arguments for the daemon process
	daemonArgs := []string{"start"}
	daemonArgs = append(daemonArgs, listenArgs...)
	daemonArgs = append(daemonArgs, "--pid-file", pidPath)
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	// Create the daemon process
	cmd := exec.Command(executable, daemonArgs...)

	// Open log file for stdout/stderr
	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// Start the daemon
	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("udpchat started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'udpchat status' to check server health")

	return nil
}
