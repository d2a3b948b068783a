package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/importjob"
	"github.com/sells-group/leadimport/internal/ingest"
	"github.com/sells-group/leadimport/internal/model"
)

var (
	importTenant   string
	importFile     string
	importSheet    string
	importStrategy string
	importOwner    string
	importBatch    string

	mailboxPath    string
	mailboxOwner   string
	mailboxIgnore  []string
	mailboxPreview bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Preview or run deduplicated lead imports",
}

var importPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show how each row of a file would be deduplicated, without writing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rows, _, err := loadImportFile(cmd)
		if err != nil {
			return err
		}

		svc, st, err := initService(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		decisions, err := svc.Preview(ctx, importjob.PreviewRequest{TenantID: importTenant, Rows: rows})
		if err != nil {
			return eris.Wrap(err, "preview")
		}
		return writeOutput(cmd.OutOrStdout(), decisions)
	},
}

var importRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Import a CSV, XLSX or extension JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rows, source, err := loadImportFile(cmd)
		if err != nil {
			return err
		}

		svc, st, err := initService(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runImport(cmd, svc, source, rows)
	},
}

var importMailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Import correspondents found in an mbox file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(mailboxPath)
		if err != nil {
			return eris.Wrapf(err, "open mbox %s", mailboxPath)
		}
		defer f.Close() //nolint:errcheck

		headers, err := ingest.ReadMbox(f)
		if err != nil {
			return err
		}
		rows := ingest.ScanHeaders(headers, ingest.ScanOptions{
			Owner:           mailboxOwner,
			IgnoreDomains:   mailboxIgnore,
			FreeMailDomains: cfg.Import.FreeMailDomains,
		})
		zap.L().Info("mailbox scanned",
			zap.Int("messages", len(headers)),
			zap.Int("correspondents", len(rows)),
		)

		svc, st, err := initService(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if mailboxPreview {
			decisions, err := svc.Preview(ctx, importjob.PreviewRequest{TenantID: importTenant, Rows: rows})
			if err != nil {
				return eris.Wrap(err, "preview")
			}
			return writeOutput(cmd.OutOrStdout(), decisions)
		}
		return runImport(cmd, svc, model.SourceMailbox, rows)
	},
}

func loadImportFile(cmd *cobra.Command) ([]model.ImportRow, string, error) {
	aliases, err := ingest.LoadAliases(cfg.Import.AliasesPath)
	if err != nil {
		return nil, "", err
	}
	rows, source, err := ingest.LoadFile(cmd.Context(), importFile, ingest.LoadOptions{
		Aliases: aliases,
		Sheet:   importSheet,
	})
	if err != nil {
		return nil, "", err
	}
	zap.L().Info("file loaded", zap.String("file", importFile), zap.Int("rows", len(rows)))
	return rows, source, nil
}

func runImport(cmd *cobra.Command, svc *importjob.Service, source string, rows []model.ImportRow) error {
	job, err := svc.Execute(cmd.Context(), importjob.ExecuteRequest{
		TenantID: importTenant,
		OwnerID:  importOwner,
		BatchID:  importBatch,
		Source:   source,
		Strategy: model.Strategy(importStrategy),
		Rows:     rows,
	})
	if err != nil {
		return eris.Wrap(err, "import")
	}
	return writeOutput(cmd.OutOrStdout(), job.Summary())
}

func writeOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write output")
}

func init() {
	for _, c := range []*cobra.Command{importPreviewCmd, importRunCmd, importMailboxCmd} {
		c.Flags().StringVar(&importTenant, "tenant", "", "tenant ID (required)")
		_ = c.MarkFlagRequired("tenant")
	}
	for _, c := range []*cobra.Command{importPreviewCmd, importRunCmd} {
		c.Flags().StringVar(&importFile, "file", "", "path to a .csv, .tsv, .xlsx or .json file (required)")
		c.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default first sheet)")
		_ = c.MarkFlagRequired("file")
	}
	for _, c := range []*cobra.Command{importRunCmd, importMailboxCmd} {
		c.Flags().StringVar(&importStrategy, "strategy", "", "skip, update or create_new (default from config)")
		c.Flags().StringVar(&importOwner, "owner", "", "owner user ID stamped on created records")
		c.Flags().StringVar(&importBatch, "batch", "", "batch ID (default generated)")
	}
	importMailboxCmd.Flags().StringVar(&mailboxPath, "mbox", "", "path to an mbox file (required)")
	importMailboxCmd.Flags().StringVar(&mailboxOwner, "me", "", "mailbox owner's address, never imported")
	importMailboxCmd.Flags().StringSliceVar(&mailboxIgnore, "ignore-domain", nil, "correspondent domains to skip")
	importMailboxCmd.Flags().BoolVar(&mailboxPreview, "preview", false, "preview instead of importing")
	_ = importMailboxCmd.MarkFlagRequired("mbox")

	importCmd.AddCommand(importPreviewCmd, importRunCmd, importMailboxCmd)
	rootCmd.AddCommand(importCmd)
}
