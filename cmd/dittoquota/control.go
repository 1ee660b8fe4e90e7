package main

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittoquota/pkg/admin"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/spf13/cobra"
)

func newControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "control <operation> <collection> [value]",
		Short: "Run a quota control operation",
		Long: `Run a quota control operation. Requires an administrator.

Operations:
  ` + strings.Join(admin.Operations, "\n  ") + `

Names may carry the logical_quotas_ prefix.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := admin.Command{Operation: args[0], Collection: args[1]}
			if len(args) == 3 {
				c.Value = args[2]
			}
			result, err := current.controller.Execute(cmd.Context(), current.caller(), c)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <json>",
		Short: "Run a JSON control payload",
		Long: `Run a JSON control payload, for example:

  dittoquota exec '{"operation": "logical_quotas_set_maximum_size_in_bytes", "collection": "/tempZone/home/alice", "value": 1048576}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := current.controller.ExecuteJSON(cmd.Context(), current.caller(), []byte(args[0]))
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <collection>",
		Short: "Show the ledger attributes of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := current.controller.Execute(cmd.Context(), current.caller(),
				admin.Command{Operation: admin.OpGetStatus, Collection: args[0]})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <add|set|rm> <collection> <name> [value] [unit]",
		Short: "Edit a collection attribute",
		Long: `Edit a collection attribute. Ledger attributes can only be changed by
administrators, and never added twice.`,
		Args: cobra.RangeArgs(3, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			attr := metadata.Attribute{Name: args[2]}
			if len(args) > 3 {
				attr.Value = args[3]
			}
			if len(args) > 4 {
				attr.Unit = args[4]
			}
			return current.guard.ModifyMetadata(cmd.Context(), current.caller(), admin.MetadataRequest{
				Operation:  args[0],
				Collection: args[1],
				Attribute:  attr,
			})
		},
	}
}

func printResult(result admin.Result) {
	if len(result) == 0 {
		return
	}
	for _, line := range strings.Fields(result.String()) {
		fmt.Println(line)
	}
}

