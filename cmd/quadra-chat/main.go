// quadra-chat is a small interactive chat client over the session layer.
// Lines typed on stdin go to the current room; slash commands switch rooms,
// set presence, or quit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/quadra-client/internal/client"
	"github.com/vovakirdan/quadra-client/internal/config"
	"github.com/vovakirdan/quadra-client/internal/event"
	"github.com/vovakirdan/quadra-client/internal/log"
)

func main() {
	var (
		configPath string
		gateway    string
		token      string
		room       string
	)

	root := &cobra.Command{
		Use:   "quadra-chat",
		Short: "Interactive chat client for the Quadra gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, gateway, token, room)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&configPath, "config", "", "path to config file")
	root.Flags().StringVar(&gateway, "gateway", "", "gateway websocket URL")
	root.Flags().StringVar(&token, "token", "", "session token")
	root.Flags().StringVar(&room, "room", "", "room to join on connect")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, gateway, token, room string) error {
	bootLog := log.New("info")

	cfg, _, err := config.Load(bootLog, configPath)
	if err != nil {
		return err
	}
	if gateway != "" {
		cfg.GatewayURL = gateway
	}

	logger := log.New(cfg.LogLevel)
	c := client.New(cfg, logger)
	defer c.Close()

	c.On(event.Message, func(payload any) {
		msg, ok := payload.(*event.MessagePayload)
		if !ok {
			return
		}
		if msg.SystemMessage {
			fmt.Printf("* %s\n", msg.Content)
			return
		}
		fmt.Printf("[%s] %s: %s\n", c.Room().ID(), msg.Author, msg.Content)
	})
	c.On(event.Join, func(any) {
		fmt.Printf("joined room %s\n", c.Room().ID())
	})
	c.On(event.Leave, func(any) {
		fmt.Println("left room")
	})
	c.On(event.Invite, func(payload any) {
		inv, ok := payload.(*event.InvitePayload)
		if !ok {
			return
		}
		fmt.Printf("%s invited you to %s (/join %s)\n", inv.Author, inv.RoomName, inv.RoomID)
	})
	c.On(event.DM, func(payload any) {
		dm, ok := payload.(*event.DMPayload)
		if !ok {
			return
		}
		fmt.Printf("(dm) %s: %s\n", dm.Author, dm.Content)
	})
	c.On(event.Disconnected, func(payload any) {
		d, _ := payload.(*event.DisconnectedPayload)
		if d != nil && d.Resuming {
			fmt.Println("connection lost, reconnecting...")
			return
		}
		fmt.Println("disconnected")
	})
	c.On(event.Resumed, func(any) {
		fmt.Println("reconnected")
	})

	if err := c.Connect(ctx, token); err != nil {
		return err
	}
	fmt.Printf("connected to %s\n", cfg.GatewayURL)

	if room != "" {
		if err := c.Join(room); err != nil {
			return err
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(c, line); err != nil {
				if err == errQuit {
					return nil
				}
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

var errQuit = fmt.Errorf("quit")

func handleLine(c *client.Client, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.Room().Message(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/join":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /join <room>")
		}
		return c.Join(fields[1])
	case "/leave":
		return c.Leave()
	case "/presence":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /presence <status> [detail]")
		}
		return c.SetPresence(fields[1], strings.Join(fields[2:], " "))
	case "/dm":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /dm <user> <message>")
		}
		return c.DirectMessage(fields[1], strings.Join(fields[2:], " "))
	case "/invite":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /invite <user>")
		}
		return c.Invite(fields[1])
	case "/quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}
