package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/serra"
	"github.com/jpalmerr/serra/internal/sensorsim"
)

func main() {
	// simulated controller on a random local port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		slog.Error("failed to start simulator", "error", err)
		os.Exit(1)
	}
	sim := &http.Server{
		Handler:           sensorsim.NewHandler(sensorsim.WithDropRate(0.1)).Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := sim.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("simulator stopped", "error", err)
		}
	}()

	d, err := serra.NewDashboard(serra.WithPort(8080), serra.WithTitle("Serra Demo"))
	if err != nil {
		slog.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	p, err := serra.New(
		serra.WithBaseURL("http://"+ln.Addr().String()),
		serra.WithSurface(d.Surface()),
		serra.WithRenderMode(serra.ModePresence),
		serra.WithCycleCallback(func(r serra.CycleResult) {
			if r.Error == nil {
				fmt.Printf("  cycle %d: temp=%s tank=%s\n",
					r.Seq, r.Snapshot.Temperature, r.Snapshot.TankLevel)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Serra Demo                                          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Readings come from a simulated controller that      ║")
	fmt.Println("  ║   sometimes drops or zeroes a field.                  ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx, p); err != nil {
		slog.Error("dashboard error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = sim.Shutdown(shutdownCtx)
}
