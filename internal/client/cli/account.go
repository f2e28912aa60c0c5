package cli

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medkeeper/internal/api"
	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/spf13/cobra"
)

// getPassword and getNewPassword are indirections used to facilitate testing.
var getPassword = GetPassword
var getNewPassword = GetNewPassword

func (a *App) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email-or-patient-id>",
		Short: "Log in as a patient and cache the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}

			password, err := getPassword(a.out, "Password")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			s, err := a.authService.Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s until %s\n", s.PatientID, formatTime(s.ExpiresAt))
			return nil
		},
	}
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			if err := a.authService.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *App) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the profile of the logged in patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.Me(ctx)
			if err != nil {
				return err
			}
			return a.printJSON(resp.Profile)
		},
	}
}

// identityFlags are the proof fields shared by signup and register.
type identityFlags struct {
	fiscalCode  string
	dateOfBirth string
	email       string
	question    string
}

func (f *identityFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fiscalCode, "fiscal-code", "", "fiscal code on file")
	cmd.Flags().StringVar(&f.dateOfBirth, "dob", "", "date of birth on file")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.question, "question", "", "security question for password reset")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("question")
}

func (a *App) signupCmd() *cobra.Command {
	var (
		id    identityFlags
		phone string
	)
	cmd := &cobra.Command{
		Use:   "signup <patient-id>",
		Short: "Create an account for a pending patient; credentials are emailed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			answer, err := GetSimpleText(a.reader, "Answer to the security question", a.out)
			if err != nil {
				return err
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.Signup(ctx, &api.SignupRequest{
				PatientID:        args[0],
				FiscalCode:       id.fiscalCode,
				DateOfBirth:      id.dateOfBirth,
				Email:            id.email,
				Phone:            phone,
				SecurityQuestion: id.question,
				SecurityAnswer:   answer,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s\n", resp.PatientID, resp.Message)
			return nil
		},
	}
	id.bind(cmd)
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	return cmd
}

func (a *App) registerCmd() *cobra.Command {
	var id identityFlags
	cmd := &cobra.Command{
		Use:   "register <patient-id>",
		Short: "Set credentials for an authorized patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			password, err := getNewPassword(a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			answer, err := GetSimpleText(a.reader, "Answer to the security question", a.out)
			if err != nil {
				return err
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.RegisterAccount(ctx, &api.RegisterAccountRequest{
				PatientID:        args[0],
				FiscalCode:       id.fiscalCode,
				DateOfBirth:      id.dateOfBirth,
				Email:            id.email,
				Password:         string(password),
				SecurityQuestion: id.question,
				SecurityAnswer:   answer,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Account registered for %s\n", resp.Profile.PatientID)
			return nil
		},
	}
	id.bind(cmd)
	return cmd
}

func (a *App) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged in patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session(cmd.Context()); err != nil {
				return err
			}
			current, err := getPassword(a.out, "Current password")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(current)

			next, err := getNewPassword(a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(next)

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			if err := a.client.ChangePassword(ctx, string(current), string(next)); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password changed; other sessions were signed out")
			return nil
		},
	}
}

func (a *App) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <email-or-patient-id>",
		Short: "Reset a forgotten password with the security question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			started, err := a.client.InitPasswordReset(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, started.Message)
			if started.Token == "" {
				return nil
			}

			answer, err := GetSimpleText(a.reader, started.Question, a.out)
			if err != nil {
				return err
			}
			next, err := getNewPassword(a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(next)

			ctx, cancel = a.withTimeout(cmd.Context())
			defer cancel()

			err = a.client.CompletePasswordReset(ctx, &api.CompletePasswordResetRequest{
				Token:       started.Token,
				Answer:      answer,
				NewPassword: string(next),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password updated; log in again")
			return nil
		},
	}
}

func (a *App) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit patient profiles",
	}

	var asAdmin bool
	show := &cobra.Command{
		Use:   "show [patient-id]",
		Short: "Show a profile (own profile when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessionOrAdmin(cmd.Context(), asAdmin); err != nil {
				return err
			}
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" && asAdmin {
				return errors.New("patient id is required with --admin")
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.GetProfile(ctx, id)
			if err != nil {
				return err
			}
			return a.printJSON(resp.Profile)
		},
	}
	show.Flags().BoolVar(&asAdmin, "admin", false, "use an admin token instead of the cached session")

	var name, dob, phone, note string
	update := &cobra.Command{
		Use:   "update",
		Short: "Edit the logged in patient's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.UpdateProfileRequest{}
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("dob") {
				req.DateOfBirth = &dob
			}
			if flags.Changed("phone") {
				req.Phone = &phone
			}
			if flags.Changed("note") {
				req.Note = &note
			}
			if req.Name == nil && req.DateOfBirth == nil && req.Phone == nil && req.Note == nil {
				return errors.New("nothing to update")
			}

			if err := a.session(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			resp, err := a.client.UpdateProfile(ctx, req)
			if err != nil {
				return err
			}
			return a.printJSON(resp.Profile)
		},
	}
	update.Flags().StringVar(&name, "name", "", "full name")
	update.Flags().StringVar(&dob, "dob", "", "date of birth")
	update.Flags().StringVar(&phone, "phone", "", "phone number")
	update.Flags().StringVar(&note, "note", "", "free-form note")

	cmd.AddCommand(show, update)
	return cmd
}
