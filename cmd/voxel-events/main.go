package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/world"
)

const defaultNatsURL = "nats://localhost:4222"

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "VOXEL", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
	)
	flag.Parse()

	switch *command {
	case "tail":
		if err := tailEvents(&TailOptions{
			URL:        *natsURL,
			Stream:     *stream,
			EventTypes: parseStringList(*eventTypes),
			Limit:      *limit,
			Follow:     *follow,
		}); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "types":
		showTypes()

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, types")
		os.Exit(1)
	}
}

type TailOptions struct {
	URL        string
	Stream     string
	EventTypes []string
	Limit      int
	Follow     bool
}

// tailEvents печатает события стрима, начиная с самого старого
func tailEvents(opts *TailOptions) error {
	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", opts.Limit, opts.Follow)

	bus, err := eventbus.NewJetStreamBus(eventbus.JetStreamConfig{URL: opts.URL, Stream: opts.Stream})
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var count atomic.Int64
	done := make(chan struct{})
	var closed atomic.Bool

	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: opts.EventTypes, Sources: []string{world.EventSource}},
		func(_ context.Context, ev *eventbus.Envelope) {
			if !opts.Follow && count.Load() >= int64(opts.Limit) {
				return
			}
			fmt.Print(formatEvent(ev))
			if n := count.Add(1); !opts.Follow && n >= int64(opts.Limit) && closed.CompareAndSwap(false, true) {
				close(done)
			}
		})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-done:
	}

	fmt.Printf("\n📊 Total events: %d\n", count.Load())
	return nil
}

// showTypes выводит типы событий мира
func showTypes() {
	fmt.Println("📋 Available event types")
	for _, t := range knownTypes {
		fmt.Printf("Type: %s\n", t.Name)
		fmt.Printf("  Description: %s\n", t.Description)
		fmt.Println()
	}
}
