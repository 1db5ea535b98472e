package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/pkg/di"
	apperrors "talking-pet/companion/pkg/errors"
)

// statusCmd prints the pet profile and derived presentation state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pet's stats, mood and equipped items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if err := c.Store.LoadProfile(ctx); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.Store.Snapshot())
		})
	},
}

// chatCmd sends one message and prints the pet's reply
var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Say something to the pet",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if err := c.Store.SendMessage(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			return printReply(cmd, c)
		})
	},
}

// actionCmd performs a care action
var actionCmd = &cobra.Command{
	Use:       "action <feed|sleep|clean|play>",
	Short:     "Perform a care action",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"feed", "sleep", "clean", "play"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action, ok := models.ParseAction(args[0])
		if !ok {
			return apperrors.NewBadRequestError(apperrors.CodeUnknownAction, "unknown action: "+args[0])
		}
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if err := c.Store.Action(ctx, action); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.Store.Profile())
		})
	},
}

// shopCmd lists the catalog; buy and equip are subcommands
var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "List the shop catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			items, err := c.Store.LoadShop(ctx, true)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-12s %5d  %s\n", item.ID, item.Type, item.Price, item.Name)
			}
			return nil
		})
	},
}

var shopBuyCmd = &cobra.Command{
	Use:   "buy <item-id>",
	Short: "Buy an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if err := c.Store.Buy(ctx, args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.Store.Profile())
		})
	},
}

var shopEquipCmd = &cobra.Command{
	Use:   "equip <item-id>",
	Short: "Equip an owned item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if err := c.Store.Equip(ctx, args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.Store.Profile())
		})
	},
}

var sendTranscript bool

// transcribeCmd turns a recorded audio file into text
var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a recording, optionally sending it as a chat message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read recording: %w", err)
		}
		name := filepath.Base(args[0])
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if !sendTranscript {
				text, err := c.Store.Transcribe(ctx, audio, name, contentType)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}

			text, err := c.Store.TranscribeAndSend(ctx, audio, name, contentType)
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing was heard")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "you: "+text)
			return printReply(cmd, c)
		})
	},
}

// remindCmd runs a single reminder check
var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one reminder check and print the pet's nudge, if any",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, func(ctx context.Context, c *di.Container) error {
			if err := c.Store.LoadProfile(ctx); err != nil {
				return err
			}
			if !c.Store.MaybeSendReminder(ctx) {
				fmt.Fprintln(cmd.OutOrStdout(), "no reminder needed")
				return nil
			}
			return printReply(cmd, c)
		})
	},
}

func init() {
	shopCmd.AddCommand(shopBuyCmd)
	shopCmd.AddCommand(shopEquipCmd)
	transcribeCmd.Flags().BoolVar(&sendTranscript, "send", false, "Send the transcript to the pet")
}

func printReply(cmd *cobra.Command, c *di.Container) error {
	snap := c.Store.Snapshot()
	if snap.ChatResult == nil {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", profileName(snap.Profile), snap.ChatResult.Mood, snap.ChatResult.Reply)
	return nil
}

func profileName(p *models.Profile) string {
	if p == nil || p.Name == "" {
		return "pet"
	}
	return p.Name
}
