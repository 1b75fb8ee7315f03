package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentoven/agentdesk/internal/router"
	"github.com/agentoven/agentdesk/pkg/server"
)

func newAgentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "Print the agent table and model bindings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := server.LoadRegistry(opts.config().AgentsFile)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPROVIDER\tMODEL\tDEFAULT")
			def := reg.Default().ID
			for _, a := range reg.List() {
				b, _ := reg.ModelBindingFor(a.ID)
				mark := ""
				if a.ID == def {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.DisplayName, b.Provider, b.ModelName, mark)
			}
			return tw.Flush()
		},
	}
}

func newRouteCmd(opts *options) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Show which agent would answer a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := server.LoadRegistry(opts.config().AgentsFile)
			if err != nil {
				return err
			}
			rt := router.New(reg)
			text := strings.Join(args, " ")

			agent := rt.Route(text)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", agent.ID, agent.DisplayName)

			if explain {
				for _, s := range rt.Explain(text) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %d %s\n", s.AgentID, s.Score, strings.Join(s.Matched, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print every agent's score")
	return cmd
}
