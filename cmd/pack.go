package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/warchs/rstf/internal/container"
	"github.com/warchs/rstf/internal/prompt"
	"github.com/warchs/rstf/internal/rerr"
)

func init() {
	Root.AddCommand(packCommand)
	flags := packCommand.Flags()
	flags.Bool("wipe", false, "Prompt to delete the original file/directory after a successful pack")
	flags.Int("level", 5, "Compression effort, 0 (fastest) to 9 (smallest)")
	flags.StringP("keyfile", "k", "", "Path to a keyfile whose digest strengthens the password")
}

var packCommand = &cobra.Command{
	Use:   "pack <input>",
	Short: "Produce a container from a file or directory",
	Args:  cobra.ExactArgs(1),
	Run: func(command *cobra.Command, args []string) {
		wipe, _ := command.Flags().GetBool("wipe")
		level, _ := command.Flags().GetInt("level")
		keyfile, _ := command.Flags().GetString("keyfile")
		input := args[0]

		run(func() error {
			password, err := prompt.Password()
			if err != nil {
				return err
			}

			Log.Infof("packing %s...", input)
			outputPath, err := container.Pack(container.PackOptions{
				InputPath:   input,
				Password:    password,
				KeyfilePath: keyfile,
				Level:       level,
			})
			if err != nil {
				return err
			}
			Log.Infof("wrote %s", outputPath)

			if wipe {
				return maybeWipe(input)
			}
			return nil
		})
	},
}

func maybeWipe(inputPath string) error {
	if !prompt.Confirm("Delete original '" + inputPath + "'?") {
		Log.Info("wipe cancelled, original data preserved")
		return nil
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return rerr.Wrap(rerr.IO, "stat original path before wipe", err)
	}
	if info.IsDir() {
		err = os.RemoveAll(inputPath)
	} else {
		err = os.Remove(inputPath)
	}
	if err != nil {
		return rerr.Wrap(rerr.IO, "wipe original path", err)
	}
	Log.Info("original data wiped")
	return nil
}
