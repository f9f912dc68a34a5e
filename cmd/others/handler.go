package others

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	cmdcore "github.com/projecteru2/parcel/cmd/core"
	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/gc"
	"github.com/projecteru2/parcel/operation/repo"
	"github.com/projecteru2/parcel/utils"
	"github.com/projecteru2/parcel/version"
)

type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) List(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	if distfiles, _ := cmd.Flags().GetBool("distfiles"); distfiles {
		return listDistfiles(conf)
	}

	repository, err := cmdcore.InitRepo(conf)
	if err != nil {
		return err
	}
	entries, err := repository.Packages(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No packages installed.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tCONTENTS\tINSTALLED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s ago\n",
			e.Name,
			e.Version,
			len(e.Contents),
			units.HumanDuration(time.Since(e.InstalledAt)),
		)
	}
	w.Flush() //nolint:errcheck,gosec
	return nil
}

func listDistfiles(conf *config.Config) error {
	names := utils.ScanFiles(conf.DistfilesDir())
	if len(names) == 0 {
		fmt.Println("No distfiles cached.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tSIZE")
	for _, name := range names {
		info, err := os.Stat(filepath.Join(conf.DistfilesDir(), name))
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, cmdcore.FormatSize(info.Size()))
	}
	w.Flush() //nolint:errcheck,gosec
	return nil
}

func (h Handler) GC(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	repository, err := cmdcore.InitRepo(conf)
	if err != nil {
		return err
	}

	o := gc.NewDistfiles(conf, repository.Lock(), func(ctx context.Context) (map[string]struct{}, error) {
		entries, err := repository.Packages(ctx)
		if err != nil {
			return nil, err
		}
		labels := make([]string, 0, len(entries))
		for _, e := range entries {
			labels = append(labels, e.Name+"-"+e.Version)
		}
		return gc.References(labels, conf.DistfilesDir()), nil
	})
	if err := o.Run(ctx); err != nil {
		return err
	}
	log.WithFunc("cmd.gc").Infof(ctx, "GC completed")
	return nil
}

func (h Handler) Sync(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	repository, err := cmdcore.InitRepo(conf)
	if err != nil {
		return err
	}
	reg := repository.Operations()
	if !reg.Supports(repo.CmdSync) {
		return fmt.Errorf("sync: repository has no syncer configured")
	}
	changed, err := reg.Sync(ctx, nil)
	if err != nil {
		return err
	}
	if changed {
		fmt.Println("Repository synced.")
	} else {
		fmt.Println("Repository already up to date.")
	}
	return nil
}

func (h Handler) Version(_ *cobra.Command, _ []string) error {
	fmt.Print(version.String())
	return nil
}
