package build

import (
	"context"

	"github.com/projecteru2/parcel/types"
)

// Backend supplies the stage bodies of a build operation. Every method
// follows the stage contract: (true, nil) on success, (false, nil) on a
// clean expected failure, error on abnormal conditions.
//
// Embed NopBackend and override only the stages a build system implements;
// unoverridden stages succeed without doing anything.
type Backend interface {
	Setup(ctx context.Context) (bool, error)
	Unpack(ctx context.Context) (bool, error)
	Prepare(ctx context.Context) (bool, error)
	Configure(ctx context.Context) (bool, error)
	Compile(ctx context.Context) (bool, error)
	Test(ctx context.Context) (bool, error)
	Install(ctx context.Context) (bool, error)

	// Finalize may derive a new package object carrying build results; a nil
	// package keeps the operation's original one.
	Finalize(ctx context.Context) (types.Package, bool, error)

	// Cleanup removes working files and directories created during the
	// build. It is invoked explicitly by the caller, never by the graph.
	Cleanup(ctx context.Context) (bool, error)

	// NoFetch is the hook fired when a fetchable with no URI could not be
	// obtained, before the fetch stage fails. Typically it explains to the
	// user how to provide the file manually.
	NoFetch(ctx context.Context, f types.Fetchable) error
}

// MergeBackend supplies the stage bodies of an install (merge) operation.
type MergeBackend interface {
	Preinst(ctx context.Context) (bool, error)
	Postinst(ctx context.Context) (bool, error)
	Finalize(ctx context.Context) (types.Package, bool, error)
	Cleanup(ctx context.Context) (bool, error)
}

// UnmergeBackend supplies the stage bodies of an uninstall (unmerge)
// operation.
type UnmergeBackend interface {
	Prerm(ctx context.Context) (bool, error)
	Postrm(ctx context.Context) (bool, error)
	Finalize(ctx context.Context) (types.Package, bool, error)
	Cleanup(ctx context.Context) (bool, error)
}

// ReplaceBackend supplies the stage bodies of a replace operation, which
// interleaves the merge and unmerge hooks of the two packages involved.
type ReplaceBackend interface {
	Preinst(ctx context.Context) (bool, error)
	Prerm(ctx context.Context) (bool, error)
	Postrm(ctx context.Context) (bool, error)
	Postinst(ctx context.Context) (bool, error)
	Finalize(ctx context.Context) (types.Package, bool, error)
	Cleanup(ctx context.Context) (bool, error)
}

// MaintenanceBackend supplies the body of a package configure operation.
type MaintenanceBackend interface {
	Config(ctx context.Context) (bool, error)
}

// NopBackend succeeds at every stage without doing anything. It satisfies
// Backend, MergeBackend, UnmergeBackend, ReplaceBackend and
// MaintenanceBackend, and is meant to be embedded by concrete build systems.
type NopBackend struct{}

func (NopBackend) Setup(context.Context) (bool, error) { return true, nil }

func (NopBackend) Unpack(context.Context) (bool, error) { return true, nil }

func (NopBackend) Prepare(context.Context) (bool, error) { return true, nil }

func (NopBackend) Configure(context.Context) (bool, error) { return true, nil }

func (NopBackend) Compile(context.Context) (bool, error) { return true, nil }

func (NopBackend) Test(context.Context) (bool, error) { return true, nil }

func (NopBackend) Install(context.Context) (bool, error) { return true, nil }

func (NopBackend) Preinst(context.Context) (bool, error) { return true, nil }

func (NopBackend) Postinst(context.Context) (bool, error) { return true, nil }

func (NopBackend) Prerm(context.Context) (bool, error) { return true, nil }

func (NopBackend) Postrm(context.Context) (bool, error) { return true, nil }

func (NopBackend) Config(context.Context) (bool, error) { return true, nil }

func (NopBackend) Finalize(context.Context) (types.Package, bool, error) { return nil, true, nil }

func (NopBackend) Cleanup(context.Context) (bool, error) { return true, nil }

func (NopBackend) NoFetch(context.Context, types.Fetchable) error { return nil }
