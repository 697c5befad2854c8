package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "send [json-body]",
		Short:   "Dispatch a single event through the configured sinks",
		Example: "  eventd send --name signup '{\"plan\":\"pro\"}'\n  eventd send --technical --name crash",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runSend,
	}
	cmd.Flags().String("name", "", "Event name (required)")
	cmd.Flags().Bool("technical", false, "Deliver to technical sinks only")
	cmd.Flags().String("user", "", "Set this user id before sending")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("--name must not be blank")
	}
	var body any = props.Properties{}
	if len(args) == 1 {
		raw := json.RawMessage(args[0])
		if !json.Valid(raw) {
			return fmt.Errorf("body is not valid JSON")
		}
		body = raw
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())
	// One-shot runs keep their prometheus sinks off the process registry.
	a, err := startApp(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	if user, _ := cmd.Flags().GetString("user"); user != "" {
		a.dispatcher.SetUserID(&user)
	}
	if technical, _ := cmd.Flags().GetBool("technical"); technical {
		a.dispatcher.SendTechnical(events.NewTechnical(events.Name(name), body))
	} else {
		a.dispatcher.Send(events.Name(name), body)
	}
	return a.stop()
}
