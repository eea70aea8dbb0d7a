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
	rootCmd.AddCommand(lookupCmd)
}

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <bundle-id>",
	Short: "Resolve a bundle ID to its catalog entry",
	Example: heredoc.Doc(`
		❯ ipafetch lookup com.zhiliaoapp.musically
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

		app, err := as.Lookup(account, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s:     %s\n", color.New(color.Bold).Sprint("Name"), app.Name)
		fmt.Printf("%s: %s\n", color.New(color.Bold).Sprint("BundleID"), app.BundleID)
		fmt.Printf("%s:       %d\n", color.New(color.Bold).Sprint("ID"), app.ID)
		fmt.Printf("%s:  %s\n", color.New(color.Bold).Sprint("Version"), app.Version)
		fmt.Printf("%s:    %.2f\n", color.New(color.Bold).Sprint("Price"), app.Price)

		return nil
	},
}
