package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/Vasu1712/scenyx-chatsync/internal/chatsync"
	"github.com/Vasu1712/scenyx-chatsync/internal/client"
	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/retry"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Open a terminal chat session against a relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Usage: "Override client.server_url"},
			&cli.StringFlag{Name: "id", Usage: "Override client.participant_id"},
			&cli.StringFlag{Name: "password", Usage: "Override client.password", EnvVars: []string{"SCENYX_PASSWORD"}},
			&cli.StringFlag{Name: "open", Usage: "Counterpart to open on start"},
		},
		Action: runChat,
	}
}

func runChat(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("server") {
		cfg.Client.ServerURL = c.String("server")
	}
	if c.IsSet("id") {
		cfg.Client.ParticipantID = c.String("id")
	}
	if c.IsSet("password") {
		cfg.Client.Password = c.String("password")
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	api, err := client.New(cfg.Client.ServerURL, nil)
	if err != nil {
		return err
	}
	api.SetHistoryLimit(cfg.Client.HistoryLimit)

	id, err := models.ParseParticipantID(cfg.Client.ParticipantID)
	if err != nil {
		return err
	}
	if _, err := api.Login(ctx, id, cfg.Client.Password); err != nil {
		return err
	}

	backoff := retry.DefaultBackoff()
	backoff.BaseDelay = cfg.Client.ReconnectBase
	backoff.MaxDelay = cfg.Client.ReconnectMax

	logger := log.With().Str("participant", string(id)).Logger()
	conn := chatsync.NewConnectionManager(api.Dialer(), backoff, logger)
	conn.OnStateChange(func(s chatsync.State) {
		fmt.Printf("* connection %s\n", s)
	})

	session := chatsync.NewSession(chatsync.NewIdentity(id), api, conn, chatsync.SessionOptions{
		KeepRoomsJoined: cfg.Client.KeepRoomsJoined,
		HistoryTimeout:  cfg.Client.HistoryTimeout,
		Logger:          logger,
	})
	defer session.Close()

	dir, err := session.Bootstrap(ctx, api)
	if err != nil {
		return err
	}

	go func() {
		if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("connection manager stopped")
		}
	}()

	t := &terminal{session: session, out: os.Stdout, subs: make(map[models.ParticipantID]func())}
	defer t.close()
	t.printDirectory(dir)

	if open := c.String("open"); open != "" {
		t.open(open)
	}
	return t.loop(ctx, os.Stdin, conn)
}

// terminal drives a session from line based input.
type terminal struct {
	session *chatsync.Session
	out     io.Writer

	mu      sync.Mutex
	subs    map[models.ParticipantID]func()
	printed map[string]bool
}

func (t *terminal) loop(ctx context.Context, in io.Reader, conn *chatsync.ConnectionManager) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return nil
		case line == "/list":
			t.printDirectory(t.session.Directory())
		case line == "/rooms":
			for _, k := range conn.Rooms() {
				fmt.Fprintf(t.out, "  %s\n", k)
			}
			fmt.Fprintf(t.out, "* %d frame(s) pending\n", conn.Pending())
		case strings.HasPrefix(line, "/open "):
			t.open(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(t.out, "* commands: /open <id>, /list, /rooms, /quit")
		default:
			if _, err := t.session.SendMessage(line); err != nil {
				fmt.Fprintf(t.out, "* send failed: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

func (t *terminal) open(raw string) {
	cp, err := models.ParseParticipantID(raw)
	if err != nil {
		fmt.Fprintf(t.out, "* %v\n", err)
		return
	}
	if err := t.session.SelectConversation(cp); err != nil {
		fmt.Fprintf(t.out, "* %v\n", err)
		return
	}

	t.mu.Lock()
	if _, ok := t.subs[cp]; !ok {
		t.subs[cp] = t.session.Subscribe(cp, t.render)
	}
	t.mu.Unlock()
	fmt.Fprintf(t.out, "* conversation with %s\n", cp)
	t.render(t.session.Conversation(cp))
}

// render prints messages of conv that have not been printed yet.
func (t *terminal) render(conv chatsync.Conversation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.printed == nil {
		t.printed = make(map[string]bool)
	}
	for _, m := range conv.Messages {
		key := printKey(conv.Counterpart, m)
		if t.printed[key] {
			continue
		}
		t.printed[key] = true
		who := string(m.SenderID)
		if m.IsMine {
			who = "me"
		}
		fmt.Fprintf(t.out, "[%s] %s %s <%s> %s\n", conv.Counterpart, m.SendDate, m.SendTime, who, m.Text)
	}
}

// printKey prefers the correlation id so an optimistic send and its echo
// from history print once.
func printKey(cp models.ParticipantID, m models.MessageRecord) string {
	switch {
	case m.ClientID != "":
		return string(cp) + "/c/" + m.ClientID
	case m.ID != "":
		return string(cp) + "/s/" + m.ID
	default:
		return fmt.Sprintf("%s/%s/%s %s/%s", cp, m.SenderID, m.SendDate, m.SendTime, m.Text)
	}
}

func (t *terminal) printDirectory(d models.Directory) {
	fmt.Fprintf(t.out, "* signed in as %s\n", d.Self)
	for _, p := range d.Entries {
		if p.ID == d.Self {
			continue
		}
		status := "offline"
		if p.Online {
			status = "online"
		}
		fmt.Fprintf(t.out, "  %-8s %-20s %-8s %s\n", p.ID, p.Name, p.Role, status)
	}
}

func (t *terminal) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cancel := range t.subs {
		cancel()
	}
}
