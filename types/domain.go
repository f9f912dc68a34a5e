package types

// Domain is the opaque build-environment context passed through to build
// operation constructors. The stage engine never interprets it; backends
// cast it to whatever their build system needs.
type Domain any
