package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/minidosis/minidosis/internal/graph"
)

var selectExpr string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every topic with its declared relations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openIndex(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()
		return a.index.Current().WriteOutline(cmd.OutOrStdout())
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print one topic as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openIndex(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		view, err := a.index.View(args[0])
		if errors.Is(err, graph.ErrNotFound) {
			return fmt.Errorf("no topic %q", args[0])
		}
		if err != nil {
			return err
		}

		var out any = view
		if selectExpr != "" {
			out, err = selectJSON(view, selectExpr)
			if err != nil {
				return err
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "List topics whose title contains query, ignoring case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openIndex(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		for _, n := range a.index.Search(args[0]) {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n.ID, n.Title); err != nil {
				return err
			}
		}
		return nil
	},
}

// selectJSON applies a JSONPath expression to the JSON form of v. A single
// match is returned bare, several as a list.
func selectJSON(v any, expr string) (any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data, err := oj.Parse(raw)
	if err != nil {
		return nil, err
	}
	results := x.Get(data)
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func init() {
	getCmd.Flags().StringVarP(&selectExpr, "select", "s", "", "JSONPath applied to the topic, e.g. '$.children[*].id'")
	rootCmd.AddCommand(showCmd, getCmd, searchCmd)
}
