package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootCommand builds the full command tree. Persistent flags write into the
// App's config.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "medkeeper",
		Short:         "MedKeeper patient registry client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		a.pingCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.meCmd(),
		a.signupCmd(),
		a.registerCmd(),
		a.passwdCmd(),
		a.resetCmd(),
		a.profileCmd(),
		a.downloadCmd(),
		a.downloadAllCmd(),
		a.uploadCmd(),
		a.inviteCmd(),
		a.claimCmd(),
		a.requestAccessCmd(),
		a.requestsCmd(),
		a.adminCmd(),
	)
	return root
}

func (a *App) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			if err := a.authService.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "OK")
			return nil
		},
	}
}
