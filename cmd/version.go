////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles command-line version functionality

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/lupyd/client/dm/storage"
)

// Change this value to set the version for this build
const currentVersion = "0.3.0"

func Version() string {
	out := fmt.Sprintf("Lupyd Client v%s\n\n", currentVersion)
	out += fmt.Sprintf("Message database schema: v%d\n",
		storage.CurrentSchemaVersion)
	return out
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information for the Lupyd binary",
	Long:  `Print the version information for the Lupyd binary`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(Version())
	},
}
