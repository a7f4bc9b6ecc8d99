// File: cmd/chat.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/session"
	"github.com/xkilldash9x/chatpilot/internal/chat"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// browserProvider launches the browser a chat run drives.
type browserProvider interface {
	Launch(ctx context.Context, opts session.Options, logger *zap.Logger) (chat.Browser, error)
}

type defaultBrowserProvider struct{}

func (defaultBrowserProvider) Launch(ctx context.Context, opts session.Options, logger *zap.Logger) (chat.Browser, error) {
	s, err := session.New(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newChatCmd(provider browserProvider) *cobra.Command {
	var in chat.Interaction

	chatCmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt to the chat UI and print the reply",
		Long: `Opens the chat UI, logs in when credentials are configured
(CHATGPT_EMAIL / CHATGPT_PASSWORD), optionally selects a model and attaches an
image, sends the prompt and prints the settled response to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if in.Prompt != "" {
					return errors.New("prompt given both as argument and --prompt")
				}
				in.Prompt = args[0]
			}
			if strings.TrimSpace(in.Prompt) == "" {
				return errors.New("a prompt is required")
			}
			return runChat(cmd.Context(), cmd, provider, in)
		},
	}

	chatCmd.Flags().StringVarP(&in.Prompt, "prompt", "p", "", "Prompt text to send")
	chatCmd.Flags().StringVarP(&in.Model, "model", "m", "", "Model to select before sending (e.g. 'GPT-4o')")
	chatCmd.Flags().StringVarP(&in.ImagePath, "image", "i", "", "Path of an image to attach")
	chatCmd.Flags().Bool("headless", false, "Run the browser without a window (overrides config/env)")
	chatCmd.Flags().String("base-url", "", "Chat UI address (overrides config/env)")
	return chatCmd
}

func runChat(ctx context.Context, cmd *cobra.Command, provider browserProvider, in chat.Interaction) error {
	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	chatCfg, err := cfg.ChatConfig()
	if err != nil {
		return err
	}

	opts := cfg.BrowserOptions()
	logger.Info("Launching browser.", zap.Stringer("options", opts))
	browser, err := provider.Launch(ctx, opts, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	client, err := chat.NewClient(browser, chatCfg, chat.WithLogger(logger))
	if err != nil {
		if qerr := browser.Quit(context.WithoutCancel(ctx)); qerr != nil {
			logger.Warn("Failed to quit browser.", zap.Error(qerr))
		}
		return err
	}

	response, err := client.Run(ctx, in)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Chat aborted.", zap.String("run_id", client.ID()))
		}
		return err
	}

	logger.Info("Chat complete.", zap.String("run_id", client.ID()), zap.Int("response_length", len(response)))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), response)
	return err
}
