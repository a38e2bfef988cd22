package cli

import (
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/netmon/internal/approval"
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Run one natural-language request through the security pipeline",
	Long: `Run one natural-language request through the security pipeline.

Examples:
  netmon ask show me cpu usage
  netmon ask "list files in /var/log"
  netmon ask restart nginx              # YELLOW: asks for confirmation
  netmon ask "kill process 9999"        # RED: asks for confirmation

When stdin is not a terminal, YELLOW and RED requests are denied without
prompting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: askCommand,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func askCommand(cmd *cobra.Command, args []string) error {
	s, err := newSession(cfg, approval.NewLines(cmd.InOrStdin()), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := s.mediator.Ask(ctx, strings.Join(args, " "))
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}
