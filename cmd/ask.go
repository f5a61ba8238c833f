package main

import (
	"fmt"
	"strings"

	"github.com/lexiguard/lexiguard/internal/service"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			svc, err := service.New(cmd.Context(), cfg)
			if err != nil {
				service.Handle(err)
				return err
			}
			defer svc.Close()

			result, err := svc.Ask(cmd.Context(), nil, strings.Join(args, " "))
			if err != nil {
				service.Handle(err)
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "outcome=%s loop_count=%d steps=%d trace=%v\n",
					result.Outcome, result.LoopCount, result.Steps, result.Trace)
				for _, call := range result.ToolCalls {
					fmt.Fprintf(cmd.ErrOrStderr(), "tool=%s id=%s error=%v\n", call.ToolName, call.CallID, call.IsError)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the outcome and tool calls to stderr")
	return cmd
}
