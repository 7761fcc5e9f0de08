package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zoeyai/featmatch/pkg/pipeline"
	"github.com/zoeyai/featmatch/pkg/vision"
	"github.com/zoeyai/featmatch/pkg/vision/matcher"
	"github.com/zoeyai/featmatch/pkg/vision/selector"
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "列出全部预设",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tEXTRACTOR\tSTRATEGY\tSELECTION\tOUTPUT\tDESCRIPTION")
		for _, v := range vision.Variants() {
			extractor := string(v.Extractor)
			if v.Extractor == pipeline.ExtractorSURF && !vision.SURFAvailable() {
				extractor += " (不可用)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				v.Name, extractor, strategyString(v), selectionString(v.Selector), v.Output, v.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(variantsCmd)
}

func strategyString(v pipeline.Variant) string {
	if v.Matcher.Strategy == matcher.StrategyIndexedKNN {
		return fmt.Sprintf("%s(%s)", v.Matcher.Strategy, v.Matcher.Index.Kind)
	}
	return v.Matcher.Strategy.String()
}

func selectionString(c selector.Config) string {
	if c.Policy == selector.PolicyTopK {
		return fmt.Sprintf("top-k %d", c.TopK)
	}
	return fmt.Sprintf("ratio %.2f", c.Ratio)
}
