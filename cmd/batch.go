package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/model"
)

var batchParallel bool

var batchCmd = &cobra.Command{
	Use:   "batch <signals-file>",
	Short: "Classify and score a batch of signals from a JSON or CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		signals, err := loadSignals(args[0])
		if err != nil {
			return err
		}
		if len(signals) == 0 {
			return eris.Errorf("no signals found in %s", args[0])
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cmd.Flags().Changed("parallel") {
			cfg.Batch.Parallel = batchParallel
		}

		zap.L().Info("starting batch classification",
			zap.Int("signals", len(signals)),
			zap.Bool("parallel", cfg.Batch.Parallel))

		result, err := env.Pipeline.ClassifyBatch(ctx, signals)
		if err != nil {
			return eris.Wrap(err, "classify batch")
		}

		return printJSON(result)
	},
}

func loadSignals(path string) ([]model.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read signals file %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return parseSignalsCSV(data)
	}
	var signals []model.Signal
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, eris.Wrapf(err, "parse signals file %s", path)
	}
	return signals, nil
}

// parseSignalsCSV reads rows with a header line. Recognized columns:
// text, source_type, source_url, company_name, company_website,
// post_date (YYYY-MM-DD), industry. Unknown columns are ignored.
func parseSignalsCSV(data []byte) ([]model.Signal, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "parse signals csv")
	}
	if len(rows) < 2 {
		return nil, nil
	}

	index := map[string]int{}
	for i, col := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	signals := make([]model.Signal, 0, len(rows)-1)
	for _, row := range rows[1:] {
		sig := model.Signal{
			Text:           field(row, "text"),
			SourceType:     model.SourceTypeCSV,
			SourceURL:      field(row, "source_url"),
			CompanyName:    field(row, "company_name"),
			CompanyWebsite: field(row, "company_website"),
			Industry:       field(row, "industry"),
		}
		if st := field(row, "source_type"); st != "" {
			sig.SourceType = model.SourceType(st)
		}
		if raw := field(row, "post_date"); raw != "" {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				zap.L().Warn("skipping unparseable post date", zap.String("value", raw))
			} else {
				sig.PostDate = &d
			}
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func init() {
	batchCmd.Flags().BoolVar(&batchParallel, "parallel", true, "classify signals concurrently")
	rootCmd.AddCommand(batchCmd)
}
