package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pagetree/internal/btree"
	"pagetree/internal/storage"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	db         string
	order      int
	valueWidth int
	sync       bool
	verbose    bool
	trace      bool
}

// The command-line tool stores int64 keys with fixed-width string values.
type tree = btree.BPlusTree[int64, string]

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "minidb",
		Short:        "Inspect and modify a disk-backed B+ tree file",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.db, "db", "minidb.db", "path to the tree file")
	flags.IntVar(&opts.order, "order", 0, "tree order for a new file (0 = default for new files, stored order for existing ones)")
	flags.IntVar(&opts.valueWidth, "value-width", 32, "fixed value width in bytes")
	flags.BoolVar(&opts.sync, "sync", false, "sync after every page write")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")
	flags.BoolVar(&opts.trace, "trace", false, "print recorded tree steps as JSON lines to stderr")

	root.AddCommand(
		newInsertCmd(opts),
		newGetCmd(opts),
		newScanCmd(opts),
		newDumpCmd(opts),
		newVerifyCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// withTree opens the file named by --db, runs fn and closes the tree.
func withTree(cmd *cobra.Command, opts *options, fn func(t *tree) error) (err error) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	recorder := btree.StepRecorder(btree.NewNoOpRecorder())
	if opts.trace {
		recorder = btree.NewBufferedRecorder()
	}

	cfg := btree.Config{
		Order:       opts.order,
		SyncOnWrite: opts.sync,
		Logger:      logger,
		Recorder:    recorder,
	}
	t, err := btree.OpenFile[int64, string](opts.db, cfg, storage.Int64{}, storage.NewFixedString(opts.valueWidth))
	if err != nil {
		return errors.Wrapf(err, "open %s", opts.db)
	}
	defer func() {
		if cerr := t.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	err = fn(t)
	if opts.trace {
		if terr := writeSteps(cmd.ErrOrStderr(), recorder.GetSteps()); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

func writeSteps(w io.Writer, steps []btree.Step) error {
	enc := json.NewEncoder(w)
	for _, s := range steps {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

func parseKey(s string) (int64, error) {
	k, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "key %q", s)
	}
	return k, nil
}

func newInsertCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "insert KEY VALUE [VALUE...]",
		Short: "Add one or more values under a key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return withTree(cmd, opts, func(t *tree) error {
				for _, v := range args[1:] {
					if err := t.Insert(key, v); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted %d value(s) under %d\n", len(args)-1, key)
				return nil
			})
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the values stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return withTree(cmd, opts, func(t *tree) error {
				vals, ok, err := t.Get(key)
				if err != nil {
					return err
				}
				if !ok {
					return errors.Errorf("key %d not found", key)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(vals, "\n"))
				return nil
			})
		},
	}
}

func newScanCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan [START END]",
		Short: "Print keys in ascending order, optionally within [START, END]",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.Errorf("scan takes no arguments or START and END, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end := int64(math.MinInt64), int64(math.MaxInt64)
			if len(args) == 2 {
				var err error
				if start, err = parseKey(args[0]); err != nil {
					return err
				}
				if end, err = parseKey(args[1]); err != nil {
					return err
				}
			}
			return withTree(cmd, opts, func(t *tree) error {
				n := 0
				return t.Scan(start, end, func(k int64, vals []string) bool {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", k, strings.Join(vals, ","))
					n++
					return limit <= 0 || n < limit
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many keys (0 = no limit)")
	return cmd
}

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every page level by level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, opts, func(t *tree) error {
				return t.Dump(cmd.OutOrStdout())
			})
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check ordering, separator and leaf chain invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, opts, func(t *tree) error {
				if err := t.Verify(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print tree shape and page counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd, opts, func(t *tree) error {
				s, err := t.Stats()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "order:          %d\n", s.Order)
				fmt.Fprintf(out, "height:         %d\n", s.Height)
				fmt.Fprintf(out, "root page:      %d\n", s.RootPage)
				fmt.Fprintf(out, "next free page: %d\n", s.NextFreePage)
				fmt.Fprintf(out, "leaf pages:     %d\n", s.LeafPages)
				fmt.Fprintf(out, "internal pages: %d\n", s.InternalPages)
				fmt.Fprintf(out, "keys:           %d\n", s.Keys)
				fmt.Fprintf(out, "values:         %d\n", s.Values)
				return nil
			})
		},
	}
}
