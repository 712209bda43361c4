// busctl issues a single call or cast against a bus routing topic.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danmuck/busrpc/config"
	"github.com/danmuck/busrpc/envelope"
	"github.com/danmuck/busrpc/logging"
	"github.com/danmuck/busrpc/session"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "busctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "busrpc.toml", "path to the TOML connect configuration")
		topic      = flag.String("topic", "", "routing topic")
		endpoint   = flag.String("endpoint", "", "logical operation name")
		payloadRaw = flag.String("payload", "{}", "request payload as a JSON object")
		cast       = flag.Bool("cast", false, "fire a one-way cast instead of a call")
		timeout    = flag.Duration("timeout", session.DefaultCallTimeout, "call timeout")
	)
	flag.Parse()

	if *topic == "" || *endpoint == "" {
		return fmt.Errorf("-topic and -endpoint are required")
	}

	var payload envelope.Payload
	if err := json.Unmarshal([]byte(*payloadRaw), &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	cfg, err := config.LoadBusConfig(*configPath)
	if err != nil {
		return err
	}

	sess, err := session.Connect(cfg.SessionConfig(), config.FromEnv{})
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	if *cast {
		return sess.Cast(*topic, *endpoint, payload)
	}

	start := time.Now()
	reply, err := sess.Call(*topic, *endpoint, payload, *timeout)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return fmt.Errorf("render reply: %w", err)
	}
	fmt.Printf("%s\n", out)
	fmt.Fprintf(os.Stderr, "completed in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
