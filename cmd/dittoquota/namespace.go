package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/marmos91/dittoquota/pkg/storage"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/spf13/cobra"
)

// newNamespaceCmds returns the catalog commands. Each one runs under the
// quota engine.
func newNamespaceCmds() []*cobra.Command {
	var parents bool
	mkdirCmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return current.namespace.Mkdir(cmd.Context(), userName, args[0], parents)
		},
	}
	mkdirCmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent collections")

	touchCmd := &cobra.Command{
		Use:   "touch <path>",
		Short: "Create an empty data object or update its modification time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := current.namespace.Create(cmd.Context(), userName, args[0])
			return err
		},
	}

	var putOpts storage.PutOptions
	putCmd := &cobra.Command{
		Use:   "put <path> <size>",
		Short: "Store a data object of the given size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}
			_, err = current.namespace.Put(cmd.Context(), userName, args[0], size, putOpts)
			return err
		},
	}
	putCmd.Flags().BoolVarP(&putOpts.Force, "force", "f", false, "overwrite an existing data object")
	putCmd.Flags().StringVarP(&putOpts.Resource, "resource", "R", "", "storage resource of the new replica")

	var bulkOpts storage.PutOptions
	bulkCmd := &cobra.Command{
		Use:   "bulk-put <collection> <relative-path=size>...",
		Short: "Store many data objects beneath a collection as one operation",
		Long: `Store many data objects beneath a collection, creating intermediate
collections. Either every file is stored or none is.

Example:
  dittoquota bulk-put /tempZone/home/alice/run1 a.dat=10 logs/b.log=20`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]storage.BulkFile, 0, len(args)-1)
			for _, spec := range args[1:] {
				rel, sizeStr, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("invalid file %q: expected <relative-path>=<size>", spec)
				}
				size, err := parseSize(sizeStr)
				if err != nil {
					return err
				}
				files = append(files, storage.BulkFile{RelativePath: rel, Size: size})
			}
			return current.namespace.BulkPut(cmd.Context(), userName, args[0], files, bulkOpts)
		},
	}
	bulkCmd.Flags().BoolVarP(&bulkOpts.Force, "force", "f", false, "overwrite existing data objects")
	bulkCmd.Flags().StringVarP(&bulkOpts.Resource, "resource", "R", "", "storage resource of the new replicas")

	appendCmd := &cobra.Command{
		Use:   "append <path> <bytes>",
		Short: "Grow a data object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSize(args[1])
			if err != nil {
				return err
			}
			_, err = current.namespace.Write(cmd.Context(), userName, args[0], n)
			return err
		},
	}

	truncateCmd := &cobra.Command{
		Use:   "truncate <path> <size>",
		Short: "Set the size of a data object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}
			_, err = current.namespace.Truncate(cmd.Context(), userName, args[0], size)
			return err
		},
	}

	var recursive bool
	rmCmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a data object, or a collection with -r",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recursive {
				return current.namespace.RemoveCollection(cmd.Context(), userName, args[0])
			}
			return current.namespace.Remove(cmd.Context(), userName, args[0])
		},
	}
	rmCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove a collection and everything beneath it")

	mvCmd := &cobra.Command{
		Use:   "mv <source> <destination>",
		Short: "Rename a data object or collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return current.namespace.Rename(cmd.Context(), userName, args[0], args[1])
		},
	}

	cpCmd := &cobra.Command{
		Use:   "cp <source> <destination>",
		Short: "Copy a data object or collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return current.namespace.Copy(cmd.Context(), userName, args[0], args[1])
		},
	}

	replCmd := &cobra.Command{
		Use:   "repl <path> <resource>",
		Short: "Add a replica of a data object on another resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := current.namespace.Replicate(cmd.Context(), userName, args[0], args[1])
			return err
		},
	}

	replStatusCmd := &cobra.Command{
		Use:   "repl-status <path> <replica-number> <good|stale>",
		Short: "Mark a replica good or stale",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid replica number %q", args[1])
			}
			var status metadata.ReplicaStatus
			switch args[2] {
			case "good":
				status = metadata.ReplicaGood
			case "stale":
				status = metadata.ReplicaStale
			default:
				return fmt.Errorf("invalid replica status %q: expected good or stale", args[2])
			}
			return current.namespace.SetReplicaStatus(cmd.Context(), userName, args[0], number, status)
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls <collection>",
		Short: "List a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := current.namespace.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, e := range entries {
				if e.IsCollection() {
					_, _ = fmt.Fprintf(w, "C-\t%s\t%s\n", e.Collection.Owner, e.Path)
					continue
				}
				_, _ = fmt.Fprintf(w, "  \t%s\t%s\t%d\t%d replica(s)\n",
					e.Object.Owner, e.Path, e.Object.LogicalSize(), len(e.Object.Replicas))
			}
			return w.Flush()
		},
	}

	return []*cobra.Command{
		mkdirCmd, touchCmd, putCmd, bulkCmd, appendCmd, truncateCmd,
		rmCmd, mvCmd, cpCmd, replCmd, replStatusCmd, lsCmd,
	}
}

func parseSize(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}
