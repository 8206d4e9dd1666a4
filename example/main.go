package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/repowatch"
)

func main() {
	// start mock feed server (see mock_server.go)
	go StartMockFeedServer(":9999")
	time.Sleep(100 * time.Millisecond)

	// two feeds against the mock server, one with a filter
	releases, err := repowatch.NewResource("demo/releases",
		repowatch.WithResourceFilter(repowatch.Types("ReleaseEvent", "PushEvent")),
	)
	if err != nil {
		slog.Error("failed to create resource", "error", err)
		os.Exit(1)
	}

	everything, _ := repowatch.NewResource("demo/everything",
		repowatch.WithResourceInterval(5*time.Second),
	)

	w, err := repowatch.New(
		repowatch.WithResources(releases, everything),
		repowatch.WithBaseURL("http://localhost:9999"),
		repowatch.WithBaseInterval(3*time.Second),
		repowatch.WithStatusPort(8080),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Repowatch Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Watching 2 mock feeds; new events every ~10s        ║")
	fmt.Println("  ║   Status API: http://localhost:8080/api/feeds         ║")
	fmt.Println("  ║   Live stream: http://localhost:8080/api/sse          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		slog.Error("watcher error", "error", err)
		os.Exit(1)
	}
}
