package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var wishJSON bool

var wishCmd = &cobra.Command{
	Use:   "wish",
	Short: "Add or list wishes",
}

var wishAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Append a wish",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWishAdd,
}

var wishListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wishes in the order they were added",
	Args:  cobra.NoArgs,
	RunE:  runWishList,
}

func init() {
	wishCmd.PersistentFlags().BoolVar(&wishJSON, "json", false, "Output as JSON")

	wishCmd.AddCommand(wishAddCmd)
	wishCmd.AddCommand(wishListCmd)
	rootCmd.AddCommand(wishCmd)
}

func runWishAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	idx, w, err := a.Service.AddWish(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if wishJSON {
		return writeJSON(cmd, map[string]any{"index": idx, "wish": w})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added wish #%d: %s\n", idx, w)
	return nil
}

func runWishList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Service.Wishes()
	if err != nil {
		return err
	}
	if wishJSON {
		return writeJSON(cmd, list)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No wishes yet.")
		return nil
	}
	for i, w := range list {
		fmt.Fprintf(out, "%3d  %s\n", i, w)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
