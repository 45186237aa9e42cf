package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warchs/rstf/internal/container"
	"github.com/warchs/rstf/internal/prompt"
)

func init() {
	Root.AddCommand(listCommand)
	listCommand.Flags().StringP("keyfile", "k", "", "Path to the keyfile used when packing")
}

var listCommand = &cobra.Command{
	Use:   "list <input>",
	Short: "Print a container's header without extracting its payload",
	Args:  cobra.ExactArgs(1),
	Run: func(command *cobra.Command, args []string) {
		keyfile, _ := command.Flags().GetString("keyfile")
		input := args[0]

		run(func() error {
			password, err := prompt.Password()
			if err != nil {
				return err
			}
			h, err := container.List(input, password, keyfile)
			if err != nil {
				return err
			}

			kind := "File"
			if h.IsDir {
				kind = "Directory"
			}
			fmt.Printf("Name : %s\n", h.OriginalName)
			fmt.Printf("Type : %s\n", kind)
			fmt.Printf("Size : %s\n", humanBytes(h.OriginalSize))
			return nil
		})
	},
}

// humanBytes renders a byte count with a binary (1024-based) unit suffix.
func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), units[exp])
}
