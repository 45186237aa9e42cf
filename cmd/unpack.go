package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warchs/rstf/internal/container"
	"github.com/warchs/rstf/internal/prompt"
)

func init() {
	Root.AddCommand(unpackCommand)
	unpackCommand.Flags().StringP("keyfile", "k", "", "Path to the keyfile used when packing")
}

var unpackCommand = &cobra.Command{
	Use:   "unpack <input>",
	Short: "Reconstruct the original file or directory from a container",
	Args:  cobra.ExactArgs(1),
	Run: func(command *cobra.Command, args []string) {
		keyfile, _ := command.Flags().GetString("keyfile")
		input := args[0]

		run(func() error {
			password, err := prompt.Password()
			if err != nil {
				return err
			}
			h, err := container.Unpack(container.UnpackOptions{
				ContainerPath: input,
				Password:      password,
				KeyfilePath:   keyfile,
			})
			if err != nil {
				return err
			}
			Log.Infof("unpacked %s", h.OriginalName)
			return nil
		})
	},
}
