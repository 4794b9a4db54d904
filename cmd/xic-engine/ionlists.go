// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/xic-engine/internal/ionlist"
	"github.com/pdiddy/xic-engine/pkg/types"
)

var ionlistsCmd = &cobra.Command{
	Use:   "ionlists [name]",
	Short: "List named ion lists or show the ions of one list",
	Long: `Ionlists prints the names of the lists in the ion-list library. With a
name argument it prints that list's compounds and target ions.

The built-in library is used unless --library names another file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIonlists,
}

func init() {
	ionlistsCmd.Flags().String("library", "", "ion-list library file replacing the built-in one")
	ionlistsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(ionlistsCmd)
}

func runIonlists(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"ion_list.library": "library"})
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	r, err := ionlist.NewResolver(cfg.IonList, ionlist.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	if len(args) == 0 {
		names, err := r.Names()
		if err != nil {
			return err
		}
		if jsonOutput {
			return encodeJSON(names)
		}
		for _, n := range names {
			marker := ""
			if n == r.DefaultName() {
				marker = " (default)"
			}
			fmt.Printf("%s%s\n", n, marker)
		}
		return nil
	}

	list, err := r.LoadNamed(context.Background(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return encodeJSON(list)
	}
	printIonList(list)
	return nil
}

func printIonList(list *types.IonList) {
	fmt.Printf("%s (%s): %d compounds, %d ions\n\n", list.Name, list.Source, len(list.Compounds), list.IonCount())
	fmt.Printf("%-30s  %-14s  %s\n", "Compound", "m/z", "Info")
	fmt.Println(strings.Repeat("-", 70))
	for _, c := range list.Compounds {
		info := strings.Join(c.Info, ", ")
		for i, ion := range c.Ions {
			name := c.Name
			if i > 0 {
				name = ""
			}
			fmt.Printf("%-30s  %-14s  %s\n", truncate(name, 30), strconv.FormatFloat(ion.ExpectedMass, 'f', -1, 64), info)
			info = ""
		}
	}
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
