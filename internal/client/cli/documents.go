package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/filex"
	"github.com/dmitrijs2005/medkeeper/internal/netx"
	"github.com/spf13/cobra"
)

// downloadURL is a test seam for netx.DownloadPresignedURL.
var downloadURL = netx.DownloadPresignedURL

func (a *App) downloadCmd() *cobra.Command {
	var (
		asAdmin   bool
		patientID string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "download <stored-ref-or-filename>",
		Short: "Download the original of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.DownloadDocument(ctx, patientID, args[0])
			if err != nil {
				return err
			}

			content := resp.Content
			if resp.URL != "" {
				content, err = downloadURL(ctx, resp.URL)
				if err != nil {
					return err
				}
			}

			path := output
			if path == "" {
				path = filepath.Base(resp.Document.Filename)
			}
			if path == "" || path == "." || path == string(filepath.Separator) {
				path = filepath.Base(args[0])
			}
			if err := filex.WriteAtomic(path, content); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s (%d bytes)\n", path, len(content))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asAdmin, "admin", false, "use an admin token instead of the cached session")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id (defaults to the logged in patient)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (defaults to the document file name)")
	return cmd
}

func (a *App) uploadCmd() *cobra.Command {
	var (
		asAdmin   bool
		patientID string
		docType   string
		docDate   string
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Add a document to the profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.UploadDocument(ctx, &api.UploadDocumentRequest{
				PatientID:    patientID,
				Filename:     filepath.Base(args[0]),
				Content:      content,
				DocumentType: docType,
				DocumentDate: docDate,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Uploaded %s (%d bytes) as %s\n", resp.Document.Filename, resp.Size, resp.Document.StoredRef)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asAdmin, "admin", false, "use an admin token instead of the cached session")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id (defaults to the logged in patient)")
	cmd.Flags().StringVar(&docType, "type", "", "document type, e.g. referto")
	cmd.Flags().StringVar(&docDate, "date", "", "document date")
	return cmd
}

func (a *App) downloadAllCmd() *cobra.Command {
	var (
		asAdmin   bool
		patientID string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "download-all",
		Short: "Download every stored document as a zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.DownloadAll(ctx, patientID)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = filepath.Base(resp.Filename)
			}
			if path == "" || path == "." || path == string(filepath.Separator) {
				path = "documents.zip"
			}
			if err := filex.WriteAtomic(path, resp.Content); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %d documents to %s\n", resp.Count, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asAdmin, "admin", false, "use an admin token instead of the cached session")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id (defaults to the logged in patient)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination archive (defaults to the name sent by the server)")
	return cmd
}
