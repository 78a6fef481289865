package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/acolita/mongo-shell-mcp/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run commands interactively from the terminal",
	Long: `Reads one command per line and prints its result. Ctrl-C aborts the
running command and restarts the mongo shell; Ctrl-D or "exit" quits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := readOverrides(cmd)
		cfg, err := loadConfig(configPath(cmd), o)
		if err != nil {
			return err
		}

		logOut := io.Discard
		if o.debug {
			logOut = os.Stderr
		}
		a, err := newApp(cfg, logOut)
		if err != nil {
			return err
		}
		defer a.manager.Close()

		showJSON, _ := cmd.Flags().GetBool("json")
		plain, _ := cmd.Flags().GetBool("plain")

		opts := []repl.Option{
			repl.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
			repl.WithStructured(showJSON),
		}
		if plain {
			opts = append(opts, repl.WithStyles(repl.PlainStyles()))
		}

		if banner, err := a.manager.Banner(context.Background()); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), banner)
		}
		return repl.New(a.manager, opts...).Run(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().Bool("json", false, "Print the decoded structured value after each result")
	replCmd.Flags().Bool("plain", false, "Disable colours")
}
