package ops

import "github.com/spf13/cobra"

// Actions defines the package-operation commands.
type Actions interface {
	Build(cmd *cobra.Command, args []string) error
	Install(cmd *cobra.Command, args []string) error
	Uninstall(cmd *cobra.Command, args []string) error
	Replace(cmd *cobra.Command, args []string) error
	Fetch(cmd *cobra.Command, args []string) error
}

// Commands builds the package-operation command set.
func Commands(h Actions) []*cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build ATOM",
		Short: "Run the build pipeline for a package",
		Args:  cobra.ExactArgs(1),
		RunE:  h.Build,
	}
	buildCmd.Flags().StringArray("uri", nil, "distfile URI (repeatable)")

	installCmd := &cobra.Command{
		Use:   "install ATOM",
		Short: "Install a package into the local repository",
		Args:  cobra.ExactArgs(1),
		RunE:  h.Install,
	}
	installCmd.Flags().StringArray("content", nil, "filesystem object recorded for the package (repeatable)")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall ATOM",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE:  h.Uninstall,
	}

	replaceCmd := &cobra.Command{
		Use:   "replace OLD NEW",
		Short: "Replace an installed package with another",
		Args:  cobra.ExactArgs(2),
		RunE:  h.Replace,
	}
	replaceCmd.Flags().StringArray("content", nil, "filesystem object recorded for the new package (repeatable)")

	fetchCmd := &cobra.Command{
		Use:   "fetch ATOM [ATOM...]",
		Short: "Fetch distfiles for one or more packages",
		Args:  cobra.MinimumNArgs(1),
		RunE:  h.Fetch,
	}
	fetchCmd.Flags().StringArray("uri", nil, "distfile URI attached to every named package (repeatable)")

	return []*cobra.Command{buildCmd, installCmd, uninstallCmd, replaceCmd, fetchCmd}
}
