package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/retrylife/remoteplayers/internal/api"
	"github.com/retrylife/remoteplayers/internal/links"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Serve the local HTTP API and MCP tools (foreground)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(!noMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and preference status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("no-mcp", false, "do not serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "remoteplayers.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "remoteplayers version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	settings, err := openSettings()
	if err != nil {
		return err
	}
	token, err := settings.APIToken(cfg)
	settings.Close()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printWarning("remoteplayers is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	printStep("Opening %s preferences in %s", cfg.Prefs.Backend, cfg.Storage.DataDir)
	store, closeFn, err := openLinksWith(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           api.NewHandler(api.Deps{Links: store, Token: token}),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("remoteplayers listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(store, version))
		g.Go(func() error {
			if err := stdioSrv.Listen(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("remoteplayers is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop remoteplayers (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to remoteplayers (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health map[string]string
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK && health["status"] == "ok" {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Backend", "%s", cfg.Prefs.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Node", "%s", links.NodeName)

	store, closeFn, err := openLinksWith(cfg)
	if err != nil {
		printStatus("Preferences", "unavailable (%v)", err)
		return nil
	}
	defer closeFn()

	if enabled, err := store.IntegrationEnabled(); err == nil {
		printStatus("Waypoint integration", "%t", enabled)
	}
	if all, err := store.Links(); err == nil {
		printStatus("Linked servers", "%d", len(all))
	}
	return nil
}
