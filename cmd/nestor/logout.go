package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/mxauth"
)

func newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out the bot's device and invalidate its access token",
		Long: "Log out the bot's device and invalidate its access token.\n" +
			"The device and its encryption keys are deleted from the homeserver.",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := mxauth.Credentials{
				HomeserverURL: viper.GetString("homeserver_url"),
				UserID:        id.UserID(viper.GetString("user_id")),
				AccessToken:   viper.GetString("access_token"),
				DeviceID:      id.DeviceID(viper.GetString("device_id")),
			}
			if creds.HomeserverURL == "" || creds.UserID == "" || creds.AccessToken == "" {
				return fmt.Errorf("homeserver_url, user_id and access_token must be configured")
			}

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				answer, err := promptLine("This will invalidate the current access token and delete the device's encryption keys. Continue? [y/N] ")
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					return fmt.Errorf("aborted")
				}
			}

			if err := mxauth.Logout(cmd.Context(), creds); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged out from device %s\n", creds.DeviceID)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt.")
	return cmd
}
