package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/server/models"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func (a *App) inviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create, list and revoke sharing invites",
	}

	var (
		asAdmin   bool
		patientID string
		ttlHours  int
		note      string
		createdBy string
	)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an invite to the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.CreateInvite(ctx, &api.CreateInviteRequest{
				PatientID: patientID,
				TTLHours:  ttlHours,
				Note:      note,
				CreatedBy: createdBy,
			})
			if err != nil {
				return err
			}
			inv := resp.Invite
			fmt.Fprintf(a.out, "Invite %s for %s expires %s\n", inv.Token, inv.PatientID, formatTime(inv.ExpiresAt))
			return nil
		},
	}
	create.Flags().IntVar(&ttlHours, "ttl-hours", 0, "validity in hours (default 48, clamped to 1..336)")
	create.Flags().StringVar(&note, "note", "", "note for the recipient")
	create.Flags().StringVar(&createdBy, "created-by", "", "who issued the invite")

	var includeExpired bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List invites, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.ListInvites(ctx, patientID, includeExpired)
			if err != nil {
				return err
			}
			a.printInvites(resp.Invites)
			return nil
		},
	}
	list.Flags().BoolVar(&includeExpired, "all", false, "include expired, claimed and revoked invites")

	revoke := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke an active invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.RevokeInvite(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Invite %s is now %s\n", resp.Invite.Token, resp.Invite.Status)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&asAdmin, "admin", false, "use an admin token instead of the cached session")
	cmd.PersistentFlags().StringVar(&patientID, "patient", "", "patient id (defaults to the logged in patient)")
	cmd.AddCommand(create, list, revoke)
	return cmd
}

func (a *App) printInvites(invites []models.Invite) {
	tw := a.table("TOKEN\tPATIENT\tSTATUS\tEXPIRES\tNOTE")
	for _, inv := range invites {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", inv.Token, inv.PatientID, inv.Status,
			formatTime(inv.ExpiresAt), inv.Note)
	}
	_ = tw.Flush()
}

func (a *App) claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <token>",
		Short: "Claim an invite and show the shared profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.ClaimInvite(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(resp.Profile)
		},
	}
}

func (a *App) requestAccessCmd() *cobra.Command {
	var requester, contact, message string
	cmd := &cobra.Command{
		Use:   "request-access <patient-id>",
		Short: "Ask a patient for access to their profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			if !cmd.Flags().Changed("message") {
				text, err := GetMultiline(a.reader, "Message for the patient (optional)", a.out)
				if err != nil {
					return err
				}
				message = text
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.CreateAccessRequest(ctx, &api.CreateAccessRequestRequest{
				PatientID: args[0],
				Requester: requester,
				Contact:   contact,
				Message:   message,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Request %s is %s\n", resp.Request.ID, resp.Request.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&requester, "requester", "", "who is asking")
	cmd.Flags().StringVar(&contact, "contact", "", "how the patient can reach you")
	cmd.Flags().StringVar(&message, "message", "", "message for the patient")
	_ = cmd.MarkFlagRequired("requester")
	return cmd
}

func (a *App) requestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List and decide access requests",
	}

	var (
		asAdmin   bool
		patientID string
		status    string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List access requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.ListAccessRequests(ctx, patientID, status)
			if err != nil {
				return err
			}
			a.printAccessRequests(resp.Requests)
			return nil
		},
	}
	list.Flags().BoolVar(&asAdmin, "admin", false, "use an admin token instead of the cached session")
	list.Flags().StringVar(&patientID, "patient", "", "patient id (defaults to the logged in patient)")
	list.Flags().StringVar(&status, "status", "", "filter by status: pending, approved or rejected")

	var note string
	decide := &cobra.Command{
		Use:   "decide <request-id> <approved|rejected>",
		Short: "Approve or reject a pending request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision := models.AccessRequestStatus(args[1])
			if decision != models.RequestApproved && decision != models.RequestRejected {
				return errors.New("decision must be approved or rejected")
			}
			if err := a.session(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.DecideAccessRequest(ctx, &api.DecideAccessRequestRequest{
				RequestID: args[0],
				Decision:  string(decision),
				Note:      note,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Request %s is %s\n", resp.Request.ID, resp.Request.Status)
			return nil
		},
	}
	decide.Flags().StringVar(&note, "note", "", "note for the requester")

	cmd.AddCommand(list, decide)
	return cmd
}

func (a *App) printAccessRequests(reqs []models.AccessRequest) {
	tw := a.table("ID\tSTATUS\tREQUESTER\tCONTACT\tCREATED")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Requester, r.Contact,
			formatTime(r.CreatedAt))
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
