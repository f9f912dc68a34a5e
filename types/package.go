package types

import "fmt"

// Fetchable describes a distributable file needed before a build can proceed.
// An empty URI means the file cannot be fetched automatically and must be
// provided out of band.
type Fetchable struct {
	Filename string `json:"filename"`
	URI      string `json:"uri"`
}

// Package is the identity an operation acts on. The engine never interprets
// it beyond its name and fetchables.
type Package interface {
	fmt.Stringer

	// Fetchables returns the distributable files this package needs.
	// May be empty.
	Fetchables() []Fetchable
}

// ContentsHolder is implemented by packages that carry recorded filesystem
// contents, e.g. after a repository install finalizes its data.
type ContentsHolder interface {
	Contents() []string
}

// Atom is a minimal concrete Package.
type Atom struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Files   []Fetchable `json:"files,omitempty"`
}

func (a *Atom) String() string {
	if a.Version == "" {
		return a.Name
	}
	return a.Name + "-" + a.Version
}

func (a *Atom) Fetchables() []Fetchable { return a.Files }

// Mutated wraps a Package, overriding its recorded contents. It is what a
// repository install substitutes after finalizing data, so that the
// repository add notification sees the contents that actually landed.
type Mutated struct {
	Package
	contents []string
}

// WithContents returns pkg wrapped with the given recorded contents.
func WithContents(pkg Package, contents []string) *Mutated {
	return &Mutated{Package: pkg, contents: contents}
}

func (m *Mutated) Contents() []string { return m.contents }
