package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
)

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply environment overrides and check every
section, including declared buckets and cron schedules.

On success the declared buckets are listed. The exit code is 2 when the
configuration is invalid.

Examples:
  # Validate the default config.yaml
  tollgate validate

  # Validate a specific file and print JSON
  tollgate validate --config /etc/tollgate/config.yaml --output json`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
}

// bucketSummary is a declared bucket as printed by validate.
type bucketSummary struct {
	ID             string  `json:"id"`
	Capacity       string  `json:"capacity"`
	InitialBalance float64 `json:"initial_balance"`
	RefillRate     float64 `json:"refill_rate"`
}

// validateResult is the output of the validate command.
type validateResult struct {
	Valid          bool            `json:"valid"`
	Storage        string          `json:"storage"`
	RefillSchedule string          `json:"refill_schedule"`
	Buckets        []bucketSummary `json:"buckets"`
	PricedModels   int             `json:"priced_models"`
}

func (r validateResult) Headers() []string {
	return []string{"BUCKET", "CAPACITY", "INITIAL", "REFILL/S"}
}

func (r validateResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		rows = append(rows, []string{
			b.ID,
			b.Capacity,
			strconv.FormatFloat(b.InitialBalance, 'g', -1, 64),
			strconv.FormatFloat(b.RefillRate, 'g', -1, 64),
		})
	}
	return rows
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	specs, err := cfg.BucketSpecs()
	if err != nil {
		return cli.WrapConfigError(err)
	}

	result := summarize(cfg, specs)
	out := cmd.OutOrStdout()

	if format != cli.FormatText {
		return cli.NewFormatter(format).FormatTo(out, result)
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	fmt.Fprintf(out, "  Storage: %s\n", result.Storage)
	fmt.Fprintf(out, "  Refill: %s\n", result.RefillSchedule)
	fmt.Fprintf(out, "  Priced models: %d\n", result.PricedModels)
	if len(result.Buckets) == 0 {
		fmt.Fprintln(out, "  No buckets declared")
		return nil
	}
	fmt.Fprintln(out)
	return cli.NewFormatter(format).FormatTo(out, result)
}

func summarize(cfg *config.Config, specs map[string]limits.BucketSpec) validateResult {
	result := validateResult{
		Valid:          true,
		Storage:        cfg.Storage.Backend,
		RefillSchedule: config.ScheduleOff,
		Buckets:        make([]bucketSummary, 0, len(specs)),
		PricedModels:   len(cfg.Cost.Models),
	}
	if cfg.Refill.Enabled {
		result.RefillSchedule = cfg.Refill.Schedule
	}

	for id, spec := range specs {
		result.Buckets = append(result.Buckets, bucketSummary{
			ID:             id,
			Capacity:       spec.Capacity.String(),
			InitialBalance: spec.InitialBalance,
			RefillRate:     spec.RefillRate,
		})
	}
	sort.Slice(result.Buckets, func(i, j int) bool {
		return result.Buckets[i].ID < result.Buckets[j].ID
	})

	return result
}
