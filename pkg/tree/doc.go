// Package tree implements the pure operations over the mirrored node tree.
//
// Every function takes a root and returns a new root; inputs are never
// modified. Mutations copy only the path from the root to the edited parent
// and share every other subtree with the input, so a snapshot holding the old
// root stays valid and cheap to keep.
package tree
