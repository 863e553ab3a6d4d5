package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunocoulet-rtm/portraits"
	"github.com/brunocoulet-rtm/portraits/internal/config"
	"github.com/brunocoulet-rtm/portraits/internal/utils"
)

var initForce bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [file]",
	Short: "Write the default configuration, as YAML or JSON depending on the extension",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if utils.FileExists(path) && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().SaveToFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "portraits %s\n", portraits.Version)
	},
}

func init() {
	initConfigCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}
