package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/workflow"
)

func newRunCmd() *cobra.Command {
	var (
		namespace string
		file      string
		resumeID  string
		from      string
		to        []string
		subject   string
		body      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one email through triage and response",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			controller := a.controller()

			var state *workflow.State
			if resumeID != "" {
				state, err = controller.Resume(ctx, resumeID)
			} else {
				var email core.Email
				email, err = loadEmail(file, from, to, subject, body)
				if err != nil {
					return err
				}
				if namespace == "" {
					namespace = a.cfg.Namespace
				}
				state, err = controller.HandleEmail(ctx, namespace, email)
			}
			// A failed run still prints its state so the failure reason
			// and run ID are visible.
			if state != nil {
				printState(cmd, state, a)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "memory namespace (defaults to config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the email (reads stdin when \"-\")")
	cmd.Flags().StringVar(&resumeID, "resume", "", "resume the run with this ID instead of starting one")
	cmd.Flags().StringVar(&from, "from", "", "sender address")
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient addresses")
	cmd.Flags().StringVar(&subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	return cmd
}

func loadEmail(file, from string, to []string, subject, body string) (core.Email, error) {
	if file != "" {
		var r *os.File
		if file == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(file)
			if err != nil {
				return core.Email{}, err
			}
			defer f.Close()
			r = f
		}
		var email core.Email
		if err := json.NewDecoder(r).Decode(&email); err != nil {
			return core.Email{}, fmt.Errorf("decode email: %w", err)
		}
		return email, nil
	}

	if from == "" || body == "" {
		return core.Email{}, fmt.Errorf("either --file or --from and --body are required")
	}
	return core.Email{Sender: from, Recipients: to, Subject: subject, Body: body}, nil
}

func printState(cmd *cobra.Command, state *workflow.State, a *app) {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	encoder.Encode(state)

	for _, msg := range a.mailer.Sent() {
		fmt.Fprintf(cmd.OutOrStdout(), "outbox: to=%s subject=%q\n%s\n", msg.To, msg.Subject, msg.Body)
	}
}
