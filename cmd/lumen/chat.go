package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/agent"
	"github.com/lumenlabs/lumen/internal/session"
	"github.com/lumenlabs/lumen/internal/tools"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run one turn against the local engine and print the response",
	RunE: func(cmd *cobra.Command, args []string) error {
		if chatMessage == "" {
			return fmt.Errorf("use -m to pass a message")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()

		sess, err := eng.sessions.GetOrCreate(cfg.AgentID, session.KindMain, "")
		if err != nil {
			return err
		}

		result, err := eng.orchestrator.Run(context.Background(), agent.TurnRequest{
			ConversationID: sess.ID,
			Message:        chatMessage,
			Security: &tools.SecurityContext{
				AgentID:   cfg.AgentID,
				SessionID: sess.ID,
				Policy:    eng.policy(),
			},
		})
		if err != nil {
			return err
		}

		fmt.Println(result.Response)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "message to send")
}
