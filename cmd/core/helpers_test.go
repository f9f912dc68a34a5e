package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/projecteru2/parcel/types"
)

func TestParseAtom(t *testing.T) {
	tests := []struct {
		arg     string
		name    string
		version string
	}{
		{arg: "foo-1.0", name: "foo", version: "1.0"},
		{arg: "foo-1.2-r1", name: "foo", version: "1.2-r1"},
		{arg: "libx2-bar-3", name: "libx2-bar", version: "3"},
		{arg: "foo", name: "foo", version: ""},
		{arg: "a-1", name: "a", version: "1"},
		{arg: "trailing-", name: "trailing-", version: ""},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			atom := ParseAtom(tt.arg)
			assert.Equal(t, tt.name, atom.Name)
			assert.Equal(t, tt.version, atom.Version)
		})
	}
}

func TestParseFetchable(t *testing.T) {
	tests := []struct {
		uri      string
		filename string
	}{
		{uri: "https://mirror.example/dist/foo-1.0.tar.gz", filename: "foo-1.0.tar.gz"},
		{uri: "https://mirror.example/dist/foo-1.0.tar.gz?token=abc", filename: "foo-1.0.tar.gz"},
		{uri: "oci://registry.example/dist/foo:1.0", filename: "foo:1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			f := ParseFetchable(tt.uri)
			assert.Equal(t, tt.filename, f.Filename)
			assert.Equal(t, tt.uri, f.URI)
		})
	}
}

func TestParseAtomKeepsFiles(t *testing.T) {
	atom := ParseAtom("foo-1.0")
	atom.Files = append(atom.Files, types.Fetchable{Filename: "foo-1.0.tar.gz"})
	assert.Equal(t, "foo-1.0", atom.String())
	assert.Len(t, atom.Fetchables(), 1)
}
