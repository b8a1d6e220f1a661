package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"timetracker/internal/archive"
	"timetracker/internal/core"
	"timetracker/internal/report"
)

// rangeFlags are the --from/--to dates shared by report and export.
type rangeFlags struct {
	from, to string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "First day, YYYY-MM-DD (default: first of this month)")
	cmd.Flags().StringVar(&r.to, "to", "", "Last day, YYYY-MM-DD (default: last of this month)")
}

// resolve fills missing bounds with the current month.
func (r rangeFlags) resolve(a *app) (string, string) {
	now := core.RealClock{}.Now().In(a.reports.Location())
	month := report.MonthWindow(now.Year(), now.Month(), now.Location())
	from, to := r.from, r.to
	if from == "" {
		from = month.From.Format(report.DateLayout)
	}
	if to == "" {
		to = month.To.Format(report.DateLayout)
	}
	return from, to
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Hours per project and task for a date range",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			from, to := rf.resolve(a)
			flat, _, err := a.reports.Range(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if flat.Empty() {
				a.printf("No completed entries between %s and %s\n", from, to)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "%s → %s\t\t\n", from, to)
			for _, p := range flat.Projects {
				fmt.Fprintf(tw, "%s (%s)\t%s h\t\n", p.Name, core.LabelOr(p.ClientName), p.Hours())
				for _, t := range p.Tasks {
					fmt.Fprintf(tw, "  %s\t%s h\t\n", t.Name, t.Hours())
				}
			}
			fmt.Fprintf(tw, "Total\t%s h\t\n", flat.Hours())
			return tw.Flush()
		}),
	}
	rf.register(cmd)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		rf        rangeFlags
		outDir    string
		recipient string
		s3cfg     archive.S3Config
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write completed entries as CSV, optionally encrypted and archived to S3",
		Example: `  ttrack export --from 2025-01-01 --to 2025-01-31
  ttrack export --age-recipient age1... --s3-bucket my-timesheets --s3-prefix exports`,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			from, to := rf.resolve(a)

			var buf bytes.Buffer
			name, err := a.reports.ExportCSV(ctx, &buf, from, to)
			if err != nil {
				return err
			}
			name, data, err := archive.Seal(name, buf.Bytes(), recipient)
			if err != nil {
				return err
			}

			if outDir == "-" {
				_, err := a.out.Write(data)
				return err
			}
			if outDir != "" || s3cfg.Bucket == "" {
				if outDir == "" {
					outDir = "."
				}
				path := filepath.Join(outDir, name)
				if err := os.WriteFile(path, data, 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				a.printf("Wrote %s\n", path)
			}

			if s3cfg.Bucket != "" {
				s3cfg.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
				s3cfg.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
				up, err := archive.NewS3Uploader(ctx, s3cfg, a.logger)
				if err != nil {
					return err
				}
				key, err := up.Upload(ctx, name, bytes.NewReader(data))
				if err != nil {
					return err
				}
				a.printf("Uploaded s3://%s/%s\n", s3cfg.Bucket, key)
			}
			return nil
		}),
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", `Output directory, "-" for stdout (default "." unless uploading)`)
	cmd.Flags().StringVar(&recipient, "age-recipient", "", "Encrypt for these age public keys (comma separated)")
	cmd.Flags().StringVar(&s3cfg.Bucket, "s3-bucket", "", "Upload the export to this bucket")
	cmd.Flags().StringVar(&s3cfg.Prefix, "s3-prefix", "", "Key prefix inside the bucket")
	cmd.Flags().StringVar(&s3cfg.Region, "s3-region", "", "Bucket region (default from the AWS config)")
	cmd.Flags().StringVar(&s3cfg.Endpoint, "s3-endpoint", "", "S3-compatible endpoint, e.g. a MinIO URL")
	return cmd
}
