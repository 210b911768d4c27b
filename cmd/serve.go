package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/todoai/internal/api"
	"github.com/joescharf/todoai/internal/daemon"
	"github.com/joescharf/todoai/internal/reminder"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the todoai HTTP API in the foreground.

The API is served under /api/v1 on the configured port (default 8080).
Use 'todoai serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "todoai-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "todoai-serve.log")
}

func serveRun(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, shutdownSignals()...)
	defer stop()

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	s, err := getStore()
	if err != nil {
		return err
	}
	registry := newRegistry()
	if !registry.Configured() {
		ui.Warning("No AI provider configured; briefs and messages will fail")
	}

	var sched *reminder.Scheduler
	if viper.GetBool("reminders.enabled") {
		sched = reminder.NewScheduler(reminder.LogNotifier(slog.Default()))
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", viper.GetInt("port")))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           api.NewServer(s, registry, sched).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("serving API", "addr", ln.Addr().String(), "providers", registry.String())
	ui.Success("Serving API at http://localhost:%d/api/v1", viper.GetInt("port"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(gctx, s, viper.GetDuration("reminders.interval"))
		})
	}
	return g.Wait()
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("port"))}
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}

	if dryRun {
		ui.DryRunMsg("Would start %s %v", exe, args)
		return nil
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	// The child claims the PID file once it is up.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got, running := pf.IsRunning(); running && got == pid {
			ui.Success("Server started (PID %d), logging to %s", pid, logPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not start; see %s", logPath)
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return err
	}
	if !pf.WaitExit(shutdownTimeout + 2*time.Second) {
		ui.Warning("Server did not exit, killing PID %d", pid)
		if err := pf.Signal(sigKILL()); err != nil {
			return err
		}
		pf.WaitExit(2 * time.Second)
	}
	_ = pf.Remove()
	ui.Success("Server stopped (PID %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server not running")
		return nil
	}
	ui.Success("Server running (PID %d) on port %d", pid, viper.GetInt("port"))
	ui.Info("Log: %s", serveLogPath())
	return nil
}
