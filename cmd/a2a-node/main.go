// Command a2a-node is a thin CLI shell over internal/node: enough to stand
// up an agent, announce it, discover peers, and exchange tasks by hand or
// from a script. It mirrors cmd/ardents-node's subcommand dispatch and exit
// code conventions; the commands themselves are this module's own (init,
// announce, discover, send, poll) rather than the node-agent lifecycle.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"waku-a2a/agent/internal/agentcrypto"
	"waku-a2a/agent/internal/config"
	"waku-a2a/agent/internal/node"
	"waku-a2a/agent/internal/platform/privacylog"
	"waku-a2a/agent/internal/reliability"
	"waku-a2a/agent/pkg/envelope"

	"log/slog"
)

const (
	exitOK            = 0
	exitInvalidInput  = 10
	exitNetworkFailed = 20
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidInput)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "announce":
		runAnnounce(os.Args[2:])
	case "discover":
		runDiscover(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	case "poll":
		runPoll(os.Args[2:])
	default:
		printUsage()
		os.Exit(exitInvalidInput)
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	mnemonic, err := agentcrypto.NewMnemonic()
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
		return
	}
	id, err := agentcrypto.NewIdentityFromMnemonic(mnemonic)
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
		return
	}

	if err := printJSON(map[string]any{
		"mnemonic":        mnemonic,
		"public_key":      id.PublicKeyHex(),
		"ecdh_public_key": id.ECDHPublicHex(),
		"display_id":      id.DisplayID(),
	}); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
	}
	os.Exit(exitOK)
}

func runAnnounce(args []string) {
	fs := flag.NewFlagSet("announce", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	n, _, err := buildNode(*configPath)
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
		return
	}

	ctx := context.Background()
	if err := n.Announce(ctx); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
		return
	}
	if err := printJSON(map[string]any{"public_key": n.PublicKey(), "card": n.Card()}); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
	}
	os.Exit(exitOK)
}

func runDiscover(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	n, cfg, err := buildNode(*configPath)
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
		return
	}

	ctx := context.Background()
	// Discover subscribes, drains, and unsubscribes in a single call, so
	// give peers a window to be seen before making that one call.
	time.Sleep(cfg.Discovery.Timeout)
	cards, err := n.Discover(ctx)
	if err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
		return
	}
	if err := printJSON(cards); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
	}
	os.Exit(exitOK)
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	to := fs.String("to", "", "recipient public key (hex)")
	text := fs.String("text", "", "task message text")
	encryptTo := fs.String("encrypt-to", "", "recipient ECDH public key (hex), enables encryption")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	if strings.TrimSpace(*to) == "" || strings.TrimSpace(*text) == "" {
		writeStderrln("both --to and --text are required", exitInvalidInput)
		return
	}

	n, _, err := buildNode(*configPath)
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
		return
	}

	var intro *envelope.IntroBundle
	if strings.TrimSpace(*encryptTo) != "" {
		intro = &envelope.IntroBundle{AgentPublicKey: *encryptTo, Version: 1}
	}

	task := envelope.NewTask(n.PublicKey(), *to, *text)
	ctx := context.Background()
	acked, err := n.SendTask(ctx, task, intro)
	if err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
		return
	}
	if err := printJSON(map[string]any{"task_id": task.ID, "acked": acked}); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
	}
	os.Exit(exitOK)
}

func runPoll(args []string) {
	fs := flag.NewFlagSet("poll", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	wait := fs.Duration("wait", 0, "how long to wait for tasks before draining")
	respondText := fs.String("respond-text", "", "if set, auto-respond to every submitted task with this text")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	n, _, err := buildNode(*configPath)
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
		return
	}

	ctx := context.Background()
	if _, err := n.PollTasks(ctx); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
		return
	}
	if *wait > 0 {
		time.Sleep(*wait)
	}
	tasks, err := n.PollTasks(ctx)
	if err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
		return
	}

	if strings.TrimSpace(*respondText) != "" {
		for _, task := range tasks {
			if task.State != envelope.TaskSubmitted {
				continue
			}
			if err := n.Respond(ctx, task, *respondText); err != nil {
				writeStderrln(err.Error(), exitNetworkFailed)
				return
			}
		}
	}

	if err := printJSON(tasks); err != nil {
		writeStderrln(err.Error(), exitNetworkFailed)
	}
	os.Exit(exitOK)
}

// buildNode wires config -> identity -> transport -> node, exactly the
// sequence every subcommand except init needs.
func buildNode(configPath string) (*node.Node, config.Config, error) {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}

	var id *agentcrypto.Identity
	if strings.TrimSpace(cfg.Identity.Mnemonic) != "" {
		id, err = agentcrypto.NewIdentityFromMnemonic(cfg.Identity.Mnemonic)
	} else {
		id, err = agentcrypto.NewIdentity()
	}
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("build identity: %w", err)
	}

	ctx := context.Background()
	tr, err := buildTransport(ctx, cfg.Transport)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("build transport: %w", err)
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))

	n := node.New(node.Config{
		Identity: id,
		Card: envelope.AgentCard{
			Name:         cfg.Agent.Name,
			Description:  cfg.Agent.Description,
			Version:      "1",
			Capabilities: cfg.Agent.Capabilities,
		},
		Transport: tr,
		Metrics:   reliability.NewMetrics(nil),
		Logger:    logger,
	})
	if cfg.Agent.Encrypted {
		n.EnableEncryption()
	}
	return n, cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	writeStdoutln(exitInvalidInput, "a2a-node <command> [flags]")
	writeStdoutln(exitInvalidInput, "commands:")
	writeStdoutln(exitInvalidInput, "  init")
	writeStdoutln(exitInvalidInput, "  announce --config <path>")
	writeStdoutln(exitInvalidInput, "  discover --config <path>")
	writeStdoutln(exitInvalidInput, "  send     --config <path> --to <pubkey> --text <msg> [--encrypt-to <ecdh-pubkey>]")
	writeStdoutln(exitInvalidInput, "  poll     --config <path> [--wait <duration>] [--respond-text <msg>]")
}

func writeStdoutln(exitCode int, line string) {
	if _, err := fmt.Fprintln(os.Stdout, line); err != nil {
		os.Exit(exitCode)
	}
}

func writeStderrln(line string, exitCode int) {
	if _, err := fmt.Fprintln(os.Stderr, line); err != nil {
		os.Exit(exitCode)
	}
	os.Exit(exitCode)
}
