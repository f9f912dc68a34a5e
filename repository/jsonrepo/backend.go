package jsonrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/types"
)

// pkgAtom unwraps content-mutated packages down to the underlying atom.
func pkgAtom(pkg types.Package) (*types.Atom, bool) {
	for {
		switch p := pkg.(type) {
		case *types.Atom:
			return p, true
		case *types.Mutated:
			pkg = p.Package
		default:
			return nil, false
		}
	}
}

// pkgName is the index key for a package: the atom name when available,
// the display string otherwise.
func pkgName(pkg types.Package) string {
	if atom, ok := pkgAtom(pkg); ok {
		return atom.Name
	}
	return pkg.String()
}

// installBackend writes a package into the index. Its stages run inside a
// repository install operation, which already holds the write lock, so it
// uses the store's unlocked Write path.
type installBackend struct {
	repo *Repo
	pkg  types.Package
	obs  observer.Observer

	contents []string
}

func (b *installBackend) AddData(_ context.Context) (bool, error) {
	if holder, ok := b.pkg.(types.ContentsHolder); ok {
		b.contents = holder.Contents()
	}
	return true, b.repo.store.Write(func(idx *index) error {
		name, version := pkgName(b.pkg), ""
		if atom, ok := pkgAtom(b.pkg); ok {
			version = atom.Version
		}
		for _, obj := range b.contents {
			if b.obs != nil {
				b.obs.InstallingFsObj(obj)
			}
		}
		idx.Packages[name] = &Entry{
			Name:        name,
			Version:     version,
			Contents:    b.contents,
			InstalledAt: time.Now(),
		}
		return nil
	})
}

// FinalizeData substitutes the package with a variant carrying the recorded
// contents; the repository add notification receives that variant.
func (b *installBackend) FinalizeData(_ context.Context) (types.Package, bool, error) {
	return types.WithContents(b.pkg, b.contents), true, nil
}

// uninstallBackend removes a package from the index.
type uninstallBackend struct {
	repo *Repo
	pkg  types.Package
	obs  observer.Observer
}

func (b *uninstallBackend) RemoveData(_ context.Context) (bool, error) {
	removed := false
	err := b.repo.store.Write(func(idx *index) error {
		name := pkgName(b.pkg)
		entry, ok := idx.Packages[name]
		if !ok {
			return fmt.Errorf("package %s not installed", name)
		}
		for _, obj := range entry.Contents {
			if b.obs != nil {
				b.obs.RemovingFsObj(obj)
			}
		}
		delete(idx.Packages, name)
		removed = true
		return nil
	})
	return removed, err
}

func (b *uninstallBackend) FinalizeData(_ context.Context) (types.Package, bool, error) {
	return nil, true, nil
}

// replaceBackend composes the two; FinalizeData follows the install side so
// the substituted package carries the replacement's contents.
type replaceBackend struct {
	installBackend
	uninstallBackend
}

func (b *replaceBackend) AddData(ctx context.Context) (bool, error) {
	return b.installBackend.AddData(ctx)
}

// RemoveData handles the same-name upgrade case: when the replacement was
// just added under the old package's name, the old entry is already gone
// from the index and only the stale contents are reported as removed.
func (b *replaceBackend) RemoveData(ctx context.Context) (bool, error) {
	oldName := pkgName(b.uninstallBackend.pkg)
	if oldName != pkgName(b.installBackend.pkg) {
		return b.uninstallBackend.RemoveData(ctx)
	}
	kept := make(map[string]struct{}, len(b.installBackend.contents))
	for _, obj := range b.installBackend.contents {
		kept[obj] = struct{}{}
	}
	if holder, ok := b.uninstallBackend.pkg.(types.ContentsHolder); ok {
		for _, obj := range holder.Contents() {
			if _, stays := kept[obj]; !stays && b.uninstallBackend.obs != nil {
				b.uninstallBackend.obs.RemovingFsObj(obj)
			}
		}
	}
	return true, nil
}

func (b *replaceBackend) FinalizeData(ctx context.Context) (types.Package, bool, error) {
	return b.installBackend.FinalizeData(ctx)
}
