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
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntP("limit", "l", 25, "Maximum number of results")
	searchCmd.Flags().Bool("tvos", false, "Include tvOS apps in results")
	viper.BindPFlag("search.limit", searchCmd.Flags().Lookup("limit"))
	viper.BindPFlag("search.tvos", searchCmd.Flags().Lookup("tvos"))
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the App Store catalog",
	Example: heredoc.Doc(`
		# Search for apps
		❯ ipafetch search twitter

		# Search with a larger result set
		❯ ipafetch search --limit 100 "photo editor"
	`),
	Args:          cobra.ExactArgs(1),
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

		results, err := as.Search(account, args[0], viper.GetInt("search.limit"), viper.GetBool("search.tvos"))
		if err != nil {
			return fmt.Errorf("failed to search App Store: %v", err)
		}

		for _, app := range results.Results {
			fmt.Printf("%s %s %s (%d)\n",
				color.New(color.Bold).Sprint(app.Name),
				app.Version,
				color.New(color.Faint).Sprint(app.BundleID),
				app.ID,
			)
		}

		return nil
	},
}
