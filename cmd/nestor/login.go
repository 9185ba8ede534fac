package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nestorlabs/nestor/pkg/mxauth"
)

// loginSnippet is printed as ready-to-paste YAML after a successful login.
type loginSnippet struct {
	HomeserverURL string `yaml:"homeserver_url"`
	UserID        string `yaml:"user_id"`
	AccessToken   string `yaml:"access_token"`
	DeviceID      string `yaml:"device_id"`
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a password and print the bot's credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeserver, _ := cmd.Flags().GetString("homeserver")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			var err error
			if homeserver == "" {
				if homeserver, err = promptLine("Homeserver: "); err != nil {
					return err
				}
			}
			if username == "" {
				if username, err = promptLine("Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptLine("Password: "); err != nil {
					return err
				}
			}

			creds, err := mxauth.Login(cmd.Context(), homeserver, username, password)
			if err != nil {
				return err
			}

			snippet, err := yaml.Marshal(loginSnippet{
				HomeserverURL: creds.HomeserverURL,
				UserID:        string(creds.UserID),
				AccessToken:   creds.AccessToken,
				DeviceID:      string(creds.DeviceID),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Login successful! Add this to your config file:")
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprint(out, string(snippet))
			return nil
		},
	}
	cmd.Flags().StringP("homeserver", "H", "", "Homeserver domain or URL.")
	cmd.Flags().StringP("username", "u", "", "Username (@user:domain or localpart).")
	cmd.Flags().StringP("password", "p", "", "Password (prompted when omitted).")
	return cmd
}

func promptLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
