package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/framez/backend/internal/diagnostics"
)

func storageCheckCmd(a *app) *cobra.Command {
	var upload bool
	cmd := &cobra.Command{
		Use:   "storage-check",
		Short: "Check that image storage is reachable and writable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			report, err := a.client.StorageDiagnostics(cmd.Context())
			if err != nil {
				return err
			}
			writeReport(out, report)
			if !report.Success {
				return fmt.Errorf("storage check failed at step %q", report.Step)
			}

			if !upload {
				return nil
			}
			result, err := a.client.StorageUploadTest(cmd.Context())
			if err != nil {
				return err
			}
			if !result.Success {
				fmt.Fprintf(out, "✗ %s\n  %s\n", result.Message, result.Error)
				return fmt.Errorf("upload test failed")
			}
			fmt.Fprintf(out, "✓ %s (%s)\n", result.Message, result.Key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "Also upload and remove a small test file")
	return cmd
}

func writeReport(out io.Writer, report diagnostics.Report) {
	if !report.Success {
		fmt.Fprintf(out, "✗ %s\n", report.Error)
		if len(report.Buckets) > 0 {
			fmt.Fprintf(out, "  available buckets: %s\n", strings.Join(report.Buckets, ", "))
		}
		return
	}
	fmt.Fprintf(out, "✓ %s\n", report.Message)
	if report.Bucket != nil {
		fmt.Fprintf(out, "  bucket: %s\n", report.Bucket.Name)
	}
	if report.User != "" {
		fmt.Fprintf(out, "  user: %s\n", report.User)
	}
}
