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
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringP("output", "o", "", "Folder (or file) to download to")
	downloadCmd.MarkFlagDirname("output")
	downloadCmd.Flags().Bool("purchase", false, "Acquire a license first if the account has none")
	downloadCmd.Flags().Int64("app-id", 0, "Numeric app ID (skips the bundle ID lookup)")
	downloadCmd.Flags().String("external-version-id", "", "Historical build to download (see 'versions ls')")
	downloadCmd.Flags().Bool("search", false, "Search for app(s) to download")
	viper.BindPFlag("download.output", downloadCmd.Flags().Lookup("output"))
	viper.BindPFlag("download.purchase", downloadCmd.Flags().Lookup("purchase"))
	viper.BindPFlag("download.app-id", downloadCmd.Flags().Lookup("app-id"))
	viper.BindPFlag("download.external-version-id", downloadCmd.Flags().Lookup("external-version-id"))
	viper.BindPFlag("download.search", downloadCmd.Flags().Lookup("search"))
}

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:     "download <bundle-id>",
	Aliases: []string{"dl"},
	Short:   "Download App Packages from the iOS App Store",
	Example: heredoc.Doc(`
		# Download specific app by bundle ID
		❯ ipafetch download com.zhiliaoapp.musically

		# Search for apps and download interactively
		❯ ipafetch download --search twitter

		# Purchase the license first if missing
		❯ ipafetch download --purchase com.zhiliaoapp.musically

		# Download a historical build to a specific directory
		❯ ipafetch download --external-version-id 845326425 --output ./apps com.zhiliaoapp.musically
	`),
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		output := viper.GetString("download.output")
		purchase := viper.GetBool("download.purchase")
		appID := viper.GetInt64("download.app-id")
		externalVersionID := viper.GetString("download.external-version-id")

		as, err := newAppStore()
		if err != nil {
			return err
		}

		account, err := as.AccountInfo()
		if err != nil {
			return err
		}

		if viper.GetBool("download.search") {
			results, err := as.Search(account, args[0], appstore.AppStoreSearchLimit, false)
			if err != nil {
				return fmt.Errorf("failed to search App Store: %v", err)
			}

			var choices []string
			for _, app := range results.Results {
				choices = append(choices, fmt.Sprintf("%s (%s)", app.Name, app.BundleID))
			}

			dfiles := []int{}
			prompt := &survey.MultiSelect{
				Message:  "Select what app(s) to download:",
				Options:  choices,
				PageSize: 20,
			}
			if err := survey.AskOne(prompt, &dfiles); err != nil {
				if err == terminal.InterruptErr {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}

			for _, df := range dfiles {
				app := results.Results[df]
				out, err := as.DownloadWithRecovery(account, &app, output, "", purchase)
				if err != nil {
					return fmt.Errorf("failed to download app %s: %v", app.Name, err)
				}
				log.WithField("ipa", out.DestinationPath).Info("Downloaded")
			}

			return nil
		}

		var app *appstore.App
		if appID != 0 {
			app = &appstore.App{ID: appID, BundleID: args[0]}
		} else {
			app, err = as.Lookup(account, args[0])
			if err != nil {
				return err
			}
		}

		out, err := as.DownloadWithRecovery(account, app, output, externalVersionID, purchase)
		if err != nil {
			return fmt.Errorf("failed to download app %s: %v", args[0], err)
		}

		log.WithField("ipa", out.DestinationPath).Info("Downloaded")
		return nil
	},
}
