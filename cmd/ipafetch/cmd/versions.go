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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/ipafetch/internal/appstore"
)

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsMetadataCmd)
}

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Inspect the historical builds the store still serves",
}

var versionsListCmd = &cobra.Command{
	Use:   "ls <bundle-id>",
	Short: "List external version IDs for an app",
	Example: heredoc.Doc(`
		❯ ipafetch versions ls com.zhiliaoapp.musically
	`),
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		as, account, app, err := resolveApp(args[0])
		if err != nil {
			return err
		}

		out, err := as.ListVersions(account, app)
		if err != nil {
			return err
		}

		for _, id := range out.ExternalVersionIDs {
			if id == out.LatestExternalVersionID {
				fmt.Printf("%s %s\n", id, color.New(color.Bold).Sprint("(latest)"))
			} else {
				fmt.Println(id)
			}
		}

		return nil
	},
}

var versionsMetadataCmd = &cobra.Command{
	Use:   "metadata <bundle-id> <external-version-id>",
	Short: "Show the metadata of one historical build",
	Example: heredoc.Doc(`
		❯ ipafetch versions metadata com.zhiliaoapp.musically 845326425
	`),
	Args:          cobra.ExactArgs(2),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = viper.GetBool("no-color")

		as, account, app, err := resolveApp(args[0])
		if err != nil {
			return err
		}

		meta, err := as.GetVersionMetadata(account, app, args[1])
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).Sprint
		fmt.Printf("%s:        %s\n", bold("Name"), meta.ItemName)
		fmt.Printf("%s:      %s\n", bold("Artist"), meta.ArtistName)
		fmt.Printf("%s:    %s\n", bold("BundleID"), meta.BundleID)
		fmt.Printf("%s:     %s (%s)\n", bold("Version"), meta.DisplayVersion, meta.BuildNumber)
		fmt.Printf("%s:    %s\n", bold("Released"), meta.ReleaseDate.Format("2006-01-02"))
		fmt.Printf("%s:        %s\n", bold("Size"), humanize.Bytes(uint64(meta.FileSize)))
		fmt.Printf("%s:       %s\n", bold("Genre"), meta.Genre)
		fmt.Printf("%s:  %s\n", bold("Age Rating"), meta.AgeRating)
		fmt.Printf("%s:   %s\n", bold("Copyright"), meta.Copyright)

		return nil
	},
}

func resolveApp(bundleID string) (*appstore.AppStore, *appstore.Account, *appstore.App, error) {
	as, err := newAppStore()
	if err != nil {
		return nil, nil, nil, err
	}

	account, err := as.AccountInfo()
	if err != nil {
		return nil, nil, nil, err
	}

	app, err := as.Lookup(account, bundleID)
	if err != nil {
		return nil, nil, nil, err
	}

	return as, account, app, nil
}
