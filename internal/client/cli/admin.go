package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/spf13/cobra"
)

func (a *App) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands (need the shared admin secret)",
	}
	cmd.AddCommand(
		a.adminTokenCmd(),
		a.adminPendingCmd(),
		a.adminAuthorizeCmd(),
		a.adminPatientsCmd(),
		a.adminIngestCmd(),
	)
	return cmd
}

func (a *App) adminTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a short-lived admin token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			token, err := a.authService.UseAdmin(a.config.AdminSecret)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
}

func (a *App) adminPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List patients waiting for authorization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.admin(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.ListPending(ctx)
			if err != nil {
				return err
			}

			tw := a.table("PATIENT\tNAME\tCONFIDENCE\tREVIEW\tDOCS\tLAST SEEN")
			for _, p := range resp.Pending {
				review := ""
				if p.LowConfidence {
					review = "manual"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", p.PatientID, p.Name, p.Confidence, review,
					len(p.Documents), formatTime(p.LastSeen))
			}
			return tw.Flush()
		},
	}
}

func (a *App) adminAuthorizeCmd() *cobra.Command {
	var req api.AuthorizePatientRequest
	cmd := &cobra.Command{
		Use:   "authorize <patient-id>",
		Short: "Move a pending patient to the authorized registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.admin(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			req.PatientID = args[0]
			resp, err := a.client.AuthorizePatient(ctx, &req)
			if err != nil {
				return err
			}
			return a.printJSON(resp.Profile)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "override the name")
	cmd.Flags().StringVar(&req.FiscalCode, "fiscal-code", "", "override the fiscal code")
	cmd.Flags().StringVar(&req.DateOfBirth, "dob", "", "override the date of birth")
	cmd.Flags().StringVar(&req.Email, "email", "", "override the email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.Note, "note", "", "free-form note")
	return cmd
}

func (a *App) adminPatientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List authorized patients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.admin(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.ListPatients(ctx)
			if err != nil {
				return err
			}

			tw := a.table("PATIENT\tNAME\tEMAIL\tACCOUNT\tDOCS\tAUTHORIZED")
			for _, p := range resp.Patients {
				account := "no"
				if p.Registered() {
					account = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", p.PatientID, p.Name, p.Email, account,
					len(p.Documents), formatTime(p.CreatedAt))
			}
			return tw.Flush()
		},
	}
}

func (a *App) adminIngestCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "ingest <record.json>...",
		Short: "Send analysis records to the registry",
		Long: "Each file holds one analysis record or a JSON array of records. " +
			"Records that cannot be decoded or resolved are reported and skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []json.RawMessage
			for _, path := range args {
				rs, err := readRecords(path)
				if err != nil {
					return err
				}
				records = append(records, rs...)
			}

			if err := a.admin(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.IngestDocument(ctx, &api.IngestDocumentRequest{Records: records, Workers: workers})
			if err != nil {
				return err
			}

			tw := a.table("PATIENT\tSTATE\tCONFIDENCE\tFILE")
			for _, r := range resp.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.PatientID, r.State, r.Confidence, r.Filename)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, f := range resp.Failures {
				fmt.Fprintf(a.out, "skipped record %d %s: %s\n", f.Index, f.Filename, f.Error)
			}
			fmt.Fprintf(a.out, "%d ingested, %d skipped\n", len(resp.Results), len(resp.Failures))
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers on the server (0 uses the server default)")
	return cmd
}

// readRecords loads a single record or an array of records from path.
func readRecords(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if data[0] == '[' {
		var rs []json.RawMessage
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return rs, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: invalid JSON", path)
	}
	return []json.RawMessage{data}, nil
}
