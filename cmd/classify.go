package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/raptorflow/lead-engine/internal/model"
)

var (
	classifyText     string
	classifyFile     string
	classifySource   string
	classifyURL      string
	classifyCompany  string
	classifyWebsite  string
	classifyPostDate string
	classifyIndustry string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify and score a single signal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text := classifyText
		if classifyFile != "" {
			data, err := os.ReadFile(classifyFile)
			if err != nil {
				return eris.Wrapf(err, "read signal file %s", classifyFile)
			}
			text = string(data)
		}
		if text == "" && len(args) > 0 {
			text = args[0]
		}
		if text == "" {
			return eris.New("signal text required (--text, --file, or argument)")
		}

		sig := model.Signal{
			Text:           text,
			SourceType:     model.SourceType(classifySource),
			SourceURL:      classifyURL,
			CompanyName:    classifyCompany,
			CompanyWebsite: classifyWebsite,
			Industry:       classifyIndustry,
		}
		if classifyPostDate != "" {
			d, err := time.Parse("2006-01-02", classifyPostDate)
			if err != nil {
				return eris.Wrapf(err, "parse post date %s", classifyPostDate)
			}
			sig.PostDate = &d
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.ClassifySignal(ctx, sig)
		if err != nil {
			return eris.Wrap(err, "classify signal")
		}

		return printJSON(result)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	classifyCmd.Flags().StringVar(&classifyText, "text", "", "signal text")
	classifyCmd.Flags().StringVar(&classifyFile, "file", "", "read signal text from file")
	classifyCmd.Flags().StringVar(&classifySource, "source", string(model.SourceTypeManual), "source type (job_post|website|social|rss_feed|manual|csv)")
	classifyCmd.Flags().StringVar(&classifyURL, "url", "", "source URL")
	classifyCmd.Flags().StringVar(&classifyCompany, "company", "", "company name")
	classifyCmd.Flags().StringVar(&classifyWebsite, "website", "", "company website")
	classifyCmd.Flags().StringVar(&classifyPostDate, "post-date", "", "signal post date (YYYY-MM-DD)")
	classifyCmd.Flags().StringVar(&classifyIndustry, "industry", "", "company industry hint")
	rootCmd.AddCommand(classifyCmd)
}
