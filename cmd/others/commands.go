package others

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Actions defines cross-cutting system operations.
type Actions interface {
	List(cmd *cobra.Command, args []string) error
	GC(cmd *cobra.Command, args []string) error
	Sync(cmd *cobra.Command, args []string) error
	Version(cmd *cobra.Command, args []string) error
}

// Commands builds the system command set (list, gc, sync, version,
// completion).
func Commands(h Actions) []*cobra.Command {
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed packages",
		RunE:    h.List,
	}
	listCmd.Flags().Bool("distfiles", false, "list the distfile cache instead")

	return []*cobra.Command{
		listCmd,
		{
			Use:   "gc",
			Short: "Remove unreferenced distfiles and stale temp files",
			RunE:  h.GC,
		},
		{
			Use:   "sync",
			Short: "Sync the repository from its remote",
			RunE:  h.Sync,
		},
		{
			Use:   "version",
			Short: "Show version, git revision, and build timestamp",
			RunE:  h.Version,
		},
		{
			Use:       "completion [bash|zsh|fish|powershell]",
			Short:     "Generate shell completion script",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
			RunE: func(cmd *cobra.Command, args []string) error {
				root := cmd.Root()
				switch args[0] {
				case "bash":
					return root.GenBashCompletion(os.Stdout)
				case "zsh":
					return root.GenZshCompletion(os.Stdout)
				case "fish":
					return root.GenFishCompletion(os.Stdout, true)
				case "powershell":
					return root.GenPowerShellCompletionWithDesc(os.Stdout)
				default:
					return fmt.Errorf("unsupported shell: %s", args[0])
				}
			},
		},
	}
}
