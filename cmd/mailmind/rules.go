package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmind/mailmind/agent"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/triage"
)

// ruleSlots are the prompt rules under optimization, in display order.
var ruleSlots = []string{
	triage.RuleIgnore,
	triage.RuleNotify,
	triage.RuleRespond,
	agent.RuleInstructions,
}

func newRulesCmd() *cobra.Command {
	var (
		namespace string
		history   bool
	)

	cmd := &cobra.Command{
		Use:   "rules [name]",
		Short: "Show the procedural rules for a namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if namespace == "" {
				namespace = a.cfg.Namespace
			}
			scope := memory.NewScope(namespace, a.store, a.rules)

			names := ruleSlots
			if len(args) == 1 {
				names = args
			}

			for _, name := range names {
				if history {
					versions, err := scope.RuleHistory(cmd.Context(), name)
					if err != nil {
						return err
					}
					for _, rule := range versions {
						fmt.Fprintf(cmd.OutOrStdout(), "%s v%d (%s)\n  %s\n",
							name, rule.Version, rule.CreatedAt.Format("2006-01-02 15:04:05"), rule.Text)
					}
					continue
				}

				rule, ok, err := a.rules.Latest(cmd.Context(), namespace, name)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: (not yet seeded)\n", name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s v%d\n  %s\n", name, rule.Version, rule.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "memory namespace (defaults to config)")
	cmd.Flags().BoolVar(&history, "history", false, "show every version, oldest first")
	return cmd
}
