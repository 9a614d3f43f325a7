// sharkctl - command line client for a running LaserShark dashboard
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/teslashibe/lasershark/internal/config"
	"github.com/teslashibe/lasershark/internal/httpc"
)

const usage = `usage: sharkctl [-addr host:port] <command> [args]

commands:
  status                      tracker snapshot
  stats                       frame and drive statistics
  touch x y                   re-acquire the laser
  touch x1 y1 x2 y2           frame the sphero (arms driving)
  calibrate                   align sphero heading with the phone compass
  orient pitch roll yaw       set the phone orientation (degrees)
  tuning                      show tuning parameters
  throttle v                  set drive speed (0-1)
  mode boresight|laser        set the steering reference
  resize w h                  change the tracker screen
  phones                      list connected phones
`

func main() {
	addr := flag.String("addr", config.HTTPAddr(), "Dashboard address (overrides LASERSHARK_ADDR)")
	timeout := flag.Duration("timeout", httpc.DefaultTimeout, "Request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	base := config.APIURL(*addr) + "/api"
	out, err := run(ctx, base, args)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, base string, args []string) (any, error) {
	var out map[string]any
	get := func(path string) (any, error) {
		err := httpc.GetJSON(ctx, httpc.Client, base+path, &out)
		return out, err
	}
	post := func(path string, body any) (any, error) {
		err := httpc.PostJSON(ctx, httpc.Client, base+path, body, &out)
		return out, err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return get("/status")
	case "stats":
		return get("/stats")
	case "tuning":
		return get("/tuning")
	case "phones":
		return get("/phones")
	case "calibrate":
		return post("/calibrate", nil)

	case "touch":
		n, err := ints(rest)
		if err != nil {
			return nil, err
		}
		switch len(n) {
		case 2:
			return post("/touch/one", map[string]int{"x": n[0], "y": n[1]})
		case 4:
			return post("/touch/two", map[string]int{"x1": n[0], "y1": n[1], "x2": n[2], "y2": n[3]})
		}
		return nil, fmt.Errorf("touch takes 2 or 4 coordinates, got %d", len(n))

	case "orient":
		if len(rest) != 3 {
			return nil, fmt.Errorf("orient takes pitch roll yaw")
		}
		v := make([]float64, 3)
		for i, s := range rest {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("orient: %w", err)
			}
			v[i] = f
		}
		return post("/orientation/phone", map[string]float64{"pitch": v[0], "roll": v[1], "yaw": v[2]})

	case "throttle":
		if len(rest) != 1 {
			return nil, fmt.Errorf("throttle takes one value")
		}
		v, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
		return post("/tuning", map[string]float64{"throttle": v})

	case "mode":
		if len(rest) != 1 {
			return nil, fmt.Errorf("mode takes boresight or laser")
		}
		return post("/tuning", map[string]string{"mode": rest[0]})

	case "resize":
		n, err := ints(rest)
		if err != nil {
			return nil, err
		}
		if len(n) != 2 {
			return nil, fmt.Errorf("resize takes width height")
		}
		return post("/resize", map[string]int{"width": n[0], "height": n[1]})
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func ints(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", s)
		}
		out[i] = v
	}
	return out, nil
}
