package main

import (
	"fmt"
	"sort"

	"github.com/pixyzehn/Moya"
	"github.com/spf13/cobra"
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Work with stub configuration files",
}

var stubValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a stub configuration file and list its rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := moya.LoadStubConfigFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s %s\n", "(default)", describeRule(cfg.Default))

		names := make([]string, 0, len(cfg.Targets))
		for name := range cfg.Targets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-24s %s\n", name, describeRule(cfg.Targets[name]))
		}
		return nil
	},
}

func describeRule(rule moya.StubRule) string {
	desc := rule.StubBehavior().String()
	switch {
	case rule.Error != "":
		desc += fmt.Sprintf(" error=%q", rule.Error)
	case rule.Status != 0 || rule.Body != "":
		desc += fmt.Sprintf(" status=%d bytes=%d", rule.Status, len(rule.Body))
	}
	return desc
}

func init() {
	stubCmd.AddCommand(stubValidateCmd)
}
