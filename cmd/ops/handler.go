package ops

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	cmdcore "github.com/projecteru2/parcel/cmd/core"
	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/fetch"
	"github.com/projecteru2/parcel/operation/build"
	"github.com/projecteru2/parcel/types"
)

type Handler struct {
	cmdcore.BaseHandler
}

// pkgFromArgs builds the target package from an atom argument plus any
// --uri flags.
func pkgFromArgs(cmd *cobra.Command, arg string) *types.Atom {
	pkg := cmdcore.ParseAtom(arg)
	uris, _ := cmd.Flags().GetStringArray("uri")
	for _, u := range uris {
		pkg.Files = append(pkg.Files, cmdcore.ParseFetchable(u))
	}
	return pkg
}

func (h Handler) Build(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	if err := conf.EnsureDirs(); err != nil {
		return err
	}
	pkg := pkgFromArgs(cmd, args[0])

	op, err := build.NewBuild(nil, pkg, build.NopBackend{}, cmdcore.NewFetcher(conf), cmdcore.NewObserver())
	if err != nil {
		return err
	}
	ok, err := op.Run(ctx, "finalize")
	if err != nil {
		return fmt.Errorf("build %s: %w", pkg, err)
	}
	if !ok {
		return fmt.Errorf("build %s: stage reported failure", pkg)
	}
	log.WithFunc("cmd.build").Infof(ctx, "built %s", op.Pkg())
	return nil
}

func (h Handler) Install(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	repo, err := cmdcore.InitRepo(conf)
	if err != nil {
		return err
	}
	var pkg types.Package = cmdcore.ParseAtom(args[0])
	if contents, _ := cmd.Flags().GetStringArray("content"); len(contents) > 0 {
		pkg = types.WithContents(pkg, contents)
	}
	ok, err := repo.Operations().Install(ctx, pkg, cmdcore.NewObserver())
	if err != nil {
		return fmt.Errorf("install %s: %w", pkg, err)
	}
	if !ok {
		return fmt.Errorf("install %s: operation reported failure", pkg)
	}
	return nil
}

func (h Handler) Uninstall(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	repo, err := cmdcore.InitRepo(conf)
	if err != nil {
		return err
	}
	pkg := cmdcore.ParseAtom(args[0])
	ok, err := repo.Operations().Uninstall(ctx, pkg, cmdcore.NewObserver())
	if err != nil {
		return fmt.Errorf("uninstall %s: %w", pkg, err)
	}
	if !ok {
		return fmt.Errorf("uninstall %s: operation reported failure", pkg)
	}
	return nil
}

func (h Handler) Replace(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	repo, err := cmdcore.InitRepo(conf)
	if err != nil {
		return err
	}
	oldPkg := cmdcore.ParseAtom(args[0])
	var newPkg types.Package = cmdcore.ParseAtom(args[1])
	if contents, _ := cmd.Flags().GetStringArray("content"); len(contents) > 0 {
		newPkg = types.WithContents(newPkg, contents)
	}
	ok, err := repo.Operations().Replace(ctx, oldPkg, newPkg, cmdcore.NewObserver())
	if err != nil {
		return fmt.Errorf("replace %s with %s: %w", oldPkg, newPkg, err)
	}
	if !ok {
		return fmt.Errorf("replace %s with %s: operation reported failure", oldPkg, newPkg)
	}
	return nil
}

// Fetch runs the fetch-only pipeline for every named atom, pooled to
// conf.PoolSize concurrent packages.
func (h Handler) Fetch(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	if err := conf.EnsureDirs(); err != nil {
		return err
	}
	fetcher := cmdcore.NewFetcher(conf)

	pool, err := ants.NewPool(conf.PoolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	for _, arg := range args {
		pkg := pkgFromArgs(cmd, arg)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := fetchOne(ctx, conf, fetcher, pkg); err != nil {
				fail(err)
			}
		}); err != nil {
			wg.Done()
			fail(err)
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

func fetchOne(ctx context.Context, conf *config.Config, fetcher fetch.Fetcher, pkg types.Package) error {
	ctx, cancel := context.WithTimeout(ctx, conf.FetchTimeout())
	defer cancel()

	op, err := build.NewFetchOnly(pkg, fetcher, nil, cmdcore.NewObserver())
	if err != nil {
		return err
	}
	ok, err := op.Run(ctx, "finalize")
	if err != nil {
		return fmt.Errorf("fetch %s: %w", pkg, err)
	}
	if !ok {
		return fmt.Errorf("fetch %s: some distfiles could not be obtained", pkg)
	}
	return nil
}
