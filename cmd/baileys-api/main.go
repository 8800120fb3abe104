package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kintamahadji/baileys-api/internal/app"
	"github.com/kintamahadji/baileys-api/internal/auth"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/infra/config"
	"github.com/kintamahadji/baileys-api/internal/service/session"
)

// Flag variables.
var configPath string

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Serves the REST API and reconnects every persisted session.
var cmd = &cobra.Command{
	Use:   "baileys-api",
	Short: "Serves a multi-session WhatsApp REST API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(config.Load(configPath))
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		return a.Run()
	},
}

// Lists the sessions that are restored on the next start.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Lists the persisted sessions.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(config.Load(configPath))
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer a.Shutdown()

		records, err := a.Stores.Records.ListByPrefix(a.Context(), session.ConfigRecordPrefix+"-")
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(records))
		for _, r := range records {
			if r.ID == session.ConfigRecordID(r.SessionID) {
				ids = append(ids, r.SessionID)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			stats, err := a.Stores.GetStats(a.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("%s\tchats=%d contacts=%d groups=%d messages=%d\n",
				id, stats.Chats, stats.Contacts, stats.Groups, stats.Messages)
		}
		return nil
	},
}

// Pairs a session from the terminal without serving the API.
var pairCmd = &cobra.Command{
	Use:   "pair <sessionId>",
	Short: "Creates a session and prints its pairing QR codes to the terminal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		a, err := app.New(config.Load(configPath), app.WithListener(terminalQR{sessionID: id}))
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer a.Shutdown()

		stream := session.NewStream(16)
		defer stream.Close()
		if _, err := a.Sessions.Create(id, session.Options{Stream: stream}); err != nil {
			return err
		}

		for {
			select {
			case u, ok := <-stream.Updates():
				if !ok {
					return fmt.Errorf("session %s gave up pairing", id)
				}
				if u.LastDisconnect != nil {
					fmt.Printf("Connection closed (%d)\n", u.LastDisconnect.StatusCode)
				}
				if u.Connection == string(event.ConnectionOpen) {
					fmt.Printf("Session %s connected\n", id)
					return nil
				}
			case <-a.Context().Done():
				return nil
			}
		}
	},
}

// terminalQR prints the raw pairing codes of one session.
type terminalQR struct {
	sessionID string
}

func (t terminalQR) Publish(_ context.Context, sessionID string, u *event.ConnectionUpdate) {
	if sessionID != t.sessionID || u.QR == "" {
		return
	}
	qr, err := auth.QRTerminal(u.QR)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(qr)
}

func init() {
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a JSON config file. Environment variables override it.")

	cmd.AddCommand(sessionsCmd, pairCmd)
}
