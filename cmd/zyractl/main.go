package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cl "zyra/internal/cli"
	"zyra/internal/config"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	errColor    = color.New(color.FgRed)
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadCLIFromEnv()
	client := cl.NewClient(cfg.APIBaseURL, cfg.StaffToken)

	root := &cobra.Command{
		Use:          "zyractl",
		Short:        "Staff tooling for the zyra entries economy",
		SilenceUsage: true,
	}

	root.AddCommand(
		newBalanceCmd(client),
		newGrantCmd(client),
		newCheckCmd(client),
		newStockCmd(client),
		newPurchaseCmd(client),
		newHostCmd(client),
		newGiveawayCmd(client),
		newTierCmd(client),
		newCodeCmd(client),
		newRefsCmd(client),
		newCycleCmd(client),
	)

	if err := root.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(title string, payload map[string]any) error {
	headerColor.Println(title)
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", what, arg)
	}
	return id, nil
}

func newBalanceCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account_id>",
		Short: "Show an account's entries balance and tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "account id")
			if err != nil {
				return err
			}
			out, err := client.Balance(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON("Balance", out)
		},
	}
}

func newGrantCmd(client *cl.Client) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "grant <account_id> <delta>",
		Short: "Apply a staff adjustment to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "account id")
			if err != nil {
				return err
			}
			delta, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid delta: %q", args[1])
			}
			out, err := client.ApplyDelta(cmd.Context(), id, delta, reason)
			if err != nil {
				return err
			}
			return printJSON("Ledger event", out)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "staff_adjustment", "ledger reason")
	return cmd
}

func newCheckCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "check <account_id> <channel_id> <content...>",
		Short: "Dry-run the admission guard against a message",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseID(args[0], "account id")
			if err != nil {
				return err
			}
			channelID, err := parseID(args[1], "channel id")
			if err != nil {
				return err
			}
			out, err := client.CheckAdmission(cmd.Context(), accountID, channelID, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			return printJSON("Admission", out)
		},
	}
}

func newStockCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stock",
		Short: "Show the current cycle's purchase stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := client.Stock(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON("Stock", out)
		},
	}
}

func newPurchaseCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase <account_id> <tier>",
		Short: "Execute a referral purchase on behalf of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "account id")
			if err != nil {
				return err
			}
			tier, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid tier: %q", args[1])
			}
			out, err := client.Purchase(cmd.Context(), id, tier)
			if err != nil {
				return err
			}
			return printJSON("Purchase", out)
		},
	}
}

func newHostCmd(client *cl.Client) *cobra.Command {
	var createdBy int64
	cmd := &cobra.Command{
		Use:   "host <channel_id> <prize> <winner_count> <duration>",
		Short: "Host a giveaway (duration like 30m, 2h, 1d)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, err := parseID(args[0], "channel id")
			if err != nil {
				return err
			}
			winners, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid winner count: %q", args[2])
			}
			out, err := client.CreateGiveaway(cmd.Context(), channelID, args[1], winners, args[3], createdBy)
			if err != nil {
				return err
			}
			return printJSON("Giveaway", out)
		},
	}
	cmd.Flags().Int64Var(&createdBy, "by", 0, "account id of the hosting staff member")
	return cmd
}

func newGiveawayCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "giveaway <id>",
		Short: "Show a giveaway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "giveaway id")
			if err != nil {
				return err
			}
			out, err := client.Giveaway(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON("Giveaway", out)
		},
	}
}

func newTierCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "tier <balance>",
		Short: "Resolve the rank tier for a balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid balance: %q", args[0])
			}
			out, err := client.ResolveTier(cmd.Context(), balance)
			if err != nil {
				return err
			}
			return printJSON("Tier", out)
		},
	}
}

func newCodeCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "code <owner_id> <external_ref>",
		Short: "Issue a referral code bound to a platform invite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := parseID(args[0], "owner id")
			if err != nil {
				return err
			}
			out, err := client.CreateReferralCode(cmd.Context(), ownerID, args[1])
			if err != nil {
				return err
			}
			return printJSON("Referral code", out)
		},
	}
}

func newRefsCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "refs <referrer_id>",
		Short: "Count a referrer's valid referrals this cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "referrer id")
			if err != nil {
				return err
			}
			out, err := client.ReferralCount(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON("Referrals", out)
		},
	}
}

func newCycleCmd(client *cl.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run the daily cycle now (stipends, resets, stock)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := client.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON("Cycle report", out)
		},
	}
}
