/*
Copyright © 2018-2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/ipafetch/internal/appstore"
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authInfoCmd)
	authCmd.AddCommand(authRevokeCmd)

	authLoginCmd.Flags().StringP("email", "e", "", "Apple ID email address")
	authLoginCmd.Flags().StringP("password", "p", "", "Apple ID password")
	authLoginCmd.Flags().String("auth-code", "", "Two-factor authentication code")
	viper.BindPFlag("auth.login.email", authLoginCmd.Flags().Lookup("email"))
	viper.BindPFlag("auth.login.password", authLoginCmd.Flags().Lookup("password"))
	viper.BindPFlag("auth.login.auth-code", authLoginCmd.Flags().Lookup("auth-code"))
}

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the App Store session",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to the App Store",
	Example: heredoc.Doc(`
		# Login interactively (prompts for email/password)
		❯ ipafetch auth login

		# Login with flags (2FA code prompted if required)
		❯ ipafetch auth login --email me@example.com --password secret
	`),
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		as, err := newAppStore()
		if err != nil {
			return err
		}

		email := viper.GetString("auth.login.email")
		password := viper.GetString("auth.login.password")
		authCode := viper.GetString("auth.login.auth-code")

		if email == "" {
			prompt := &survey.Input{Message: "Please type your Apple ID email:"}
			if err := survey.AskOne(prompt, &email); err != nil {
				if err == terminal.InterruptErr {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}
		}
		if password == "" {
			prompt := &survey.Password{Message: "Please type your password:"}
			if err := survey.AskOne(prompt, &password); err != nil {
				if err == terminal.InterruptErr {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}
		}

		account, err := as.Login(email, password, authCode)
		if appstore.IsKind(err, appstore.ErrAuthCodeRequired) {
			prompt := &survey.Password{Message: "Please type your verification code:"}
			if err := survey.AskOne(prompt, &authCode); err != nil {
				if err == terminal.InterruptErr {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}
			account, err = as.Login(email, password, authCode)
		}
		if err != nil {
			return fmt.Errorf("failed to login to App Store: %v", err)
		}

		log.WithFields(log.Fields{
			"name":  account.Name,
			"email": account.Email,
		}).Info("Logged in")

		return nil
	},
}

var authInfoCmd = &cobra.Command{
	Use:           "info",
	Short:         "Show the active App Store account",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		as, err := newAppStore()
		if err != nil {
			return err
		}

		account, err := as.AccountInfo()
		if err != nil {
			return err
		}

		country, err := appstore.CountryCodeFromStoreFront(account.StoreFront)
		if err != nil {
			country = "unknown"
		}

		fmt.Printf("%s:       %s\n", color.New(color.Bold).Sprint("Name"), account.Name)
		fmt.Printf("%s:      %s\n", color.New(color.Bold).Sprint("Email"), account.Email)
		fmt.Printf("%s: %s (%s)\n", color.New(color.Bold).Sprint("StoreFront"), account.StoreFront, country)

		return nil
	},
}

var authRevokeCmd = &cobra.Command{
	Use:           "revoke",
	Aliases:       []string{"logout"},
	Short:         "Forget the saved App Store session",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := newAppStore()
		if err != nil {
			return err
		}

		if err := as.Revoke(); err != nil {
			return fmt.Errorf("failed to revoke App Store session: %v", err)
		}

		log.Info("Session revoked")
		return nil
	},
}
