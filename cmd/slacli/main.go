// Command slacli is a small ops tool for the worker queue: inspect the
// queue depth or re-enqueue an escalation notification job.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/mark3748/sla-engine-go/internal/engine"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: slacli queue|resend")
		fmt.Println("  queue   print the pending job count")
		fmt.Println("  resend  read an escalation event as JSON on stdin and enqueue it")
		return
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	switch os.Args[1] {
	case "queue":
		n, err := rdb.LLen(ctx, "jobs").Result()
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		fmt.Println(n)
	case "resend":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		var ev engine.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			fmt.Println("invalid event:", err)
			os.Exit(1)
		}
		jb, _ := json.Marshal(struct {
			Type string       `json:"type"`
			Data engine.Event `json:"data"`
		}{"escalation", ev})
		if err := rdb.RPush(ctx, "jobs", jb).Err(); err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		fmt.Println("enqueued escalation for timer", ev.TimerID)
	default:
		fmt.Println("unknown command")
	}
}
