package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"

	"github.com/joho/godotenv"
)

// Main is the server entry point: subcommands, flags, config, signals
func Main() {
	// Check for help flag early before instance check
	if len(os.Args) > 1 && (os.Args[len(os.Args)-1] == "-h" || os.Args[len(os.Args)-1] == "--help") {
		fs := flag.NewFlagSet("chatrelay", flag.ContinueOnError)
		registerFlags(fs)
		printHelp(fs)
		return
	}

	// Handle subcommands: start|stop|restart|status (default: start)
	command := "start"
	if len(os.Args) > 1 {
		first := os.Args[1]
		if first == "start" || first == "stop" || first == "restart" || first == "status" {
			command = first
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		}
	}

	instanceMgr := NewInstanceManager()

	switch command {
	case "status":
		if running, pid := instanceMgr.IsRunning(); running {
			fmt.Printf("Server running (PID %d)\n", pid)
		} else {
			fmt.Println("Server not running")
		}
		return
	case "stop":
		if err := instanceMgr.Kill(); err != nil {
			fmt.Printf("Stop failed: %v\n", err)
		} else {
			fmt.Println("Server stopped")
		}
		return
	case "restart":
		_ = instanceMgr.Kill() // May not be running
		fmt.Println("Restarting server...")
	case "start":
		if running, pid := instanceMgr.IsRunning(); running {
			fmt.Printf("Server already running (PID %d)\n", pid)
			return
		}
	}

	// Local .env is optional
	_ = godotenv.Load()

	addr := flag.String("addr", "", "Listen address (overrides config)")
	baseURL := flag.String("base-url", "", "Public base URL for upload links (overrides config)")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file")
	keyFile := flag.String("key", "", "TLS key file")
	useTLS := flag.Bool("tls", false, "Enable TLS")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger.Init(logger.Level(*logLevel), *logFormat)
	log := logger.Get()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Command-line flags win over file and environment
	if *addr != "" {
		cfg.Address = *addr
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}
	if *logLevel != "info" || *logFormat != "text" {
		cfg.Logging.Level = *logLevel
		cfg.Logging.Format = *logFormat
		logger.Init(logger.Level(cfg.Logging.Level), cfg.Logging.Format)
		log = logger.Get()
	}

	log.InfoWith("configuration loaded", "config", cfg.String())

	srv, err := NewServer(cfg)
	if err != nil {
		log.ErrorWithErr("failed to create server", err)
		return
	}

	if err := instanceMgr.WritePID(); err != nil {
		log.WarnWith("failed to write PID file", "error", err)
	}
	defer instanceMgr.RemovePID()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		log.InfoWith("server listening", "address", cfg.Address, "tls", cfg.TLS.Enabled)
		if err := srv.Start(); err != nil {
			errorChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.InfoWith("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.Info("server stopped")

	case err := <-errorChan:
		log.ErrorWithErr("server encountered fatal error", err)
	}
}

// registerFlags declares the flag set used for help output
func registerFlags(fs *flag.FlagSet) {
	fs.String("addr", "", "Listen address (overrides config)")
	fs.String("base-url", "", "Public base URL for upload links (overrides config)")
	fs.String("config", "", "Config file path (optional)")
	fs.String("cert", "", "TLS certificate file")
	fs.String("key", "", "TLS key file")
	fs.Bool("tls", false, "Enable TLS")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
}

// printHelp displays usage information
func printHelp(fs *flag.FlagSet) {
	fmt.Print(`Chat Relay Server - Usage:

Commands:
  start              Start the server (default if no command given)
  stop               Stop the running server
  restart            Restart the server
  status             Show server status

Flags:
`)
	fs.PrintDefaults()
	fmt.Print(`
Examples:
  ./bin/chatrelay                          # Start on default port 4000
  ./bin/chatrelay -addr :8080              # Start on a custom port
  ./bin/chatrelay -config config.yaml      # Start with a config file
  ./bin/chatrelay stop                     # Stop the server
  ./bin/chatrelay status                   # Check if the server is running
`)
}
