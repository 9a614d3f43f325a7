// sphero-check - exercise a sphero over its serial port: ping, lights,
// a short roll and a few seconds of attitude streaming
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/teslashibe/lasershark/internal/config"
	applog "github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/robot"
	"github.com/teslashibe/lasershark/pkg/sphero"
)

func main() {
	port := flag.String("port", "", "Serial port (overrides SPHERO_PORT)")
	list := flag.Bool("list", false, "List serial ports and exit")
	heading := flag.Int("heading", 0, "Roll heading (degrees)")
	speed := flag.Float64("speed", 0, "Roll speed 0-1 (0 skips the roll)")
	rollFor := flag.Duration("roll-for", time.Second, "Roll duration")
	stream := flag.Duration("stream", 3*time.Second, "Attitude streaming duration")
	flag.Parse()
	applog.Init("info")

	if *list {
		ports, err := sphero.ListPorts()
		if err != nil {
			log.Fatalf("❌ list ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	path := *port
	if path == "" {
		path = config.SpheroPortRequired()
	}

	client, err := sphero.Open(path, sphero.DefaultPortOptions())
	if err != nil {
		log.Fatalf("❌ open %s: %v", path, err)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var samples atomic.Int64
	client.OnAttitude = func(a sphero.Attitude) {
		if samples.Add(1)%10 == 1 {
			fmt.Printf("🧭 pitch %4.0f  roll %4.0f  yaw %4.0f\n", a.Pitch, a.Roll, a.Yaw)
		}
	}
	// The read loop outlives ctx so the shutdown sequence still gets answers
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go client.Run(runCtx)

	step := func(name string, fn func(context.Context) error) {
		sctx, scancel := context.WithTimeout(ctx, 2*time.Second)
		defer scancel()
		start := time.Now()
		if err := fn(sctx); err != nil {
			log.Fatalf("❌ %s: %v", name, err)
		}
		fmt.Printf("✅ %s (%v)\n", name, time.Since(start).Round(time.Millisecond))
	}

	step("ping", client.Ping)
	step("rgb", func(ctx context.Context) error { return client.SetRGB(ctx, 0, 0, 255) })
	step("connect", func(ctx context.Context) error { return robot.Connect(ctx, client, 40) })

	if *speed > 0 {
		step("roll", func(ctx context.Context) error { return client.Roll(ctx, *heading, *speed) })
		sleep(ctx, *rollFor)
		step("stop", client.Stop)
	}

	sleep(ctx, *stream)
	fmt.Printf("📈 %d attitude samples\n", samples.Load())

	shutdownCtx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer scancel()
	if err := robot.Shutdown(shutdownCtx, client); err != nil {
		log.Printf("⚠️  shutdown: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
