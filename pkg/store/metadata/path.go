package metadata

import (
	"path"
	"strings"
)

// RootPath is the logical path of the namespace root collection.
const RootPath = "/"

// CleanPath validates and normalizes a logical path.
//
// Logical paths are absolute, slash-separated and never carry a trailing
// slash (except the root itself).
//
// Returns:
//   - string: The normalized path
//   - error: ErrInvalidArgument if p is empty or relative
func CleanPath(p string) (string, error) {
	if p == "" || !strings.HasPrefix(p, "/") {
		return "", &StoreError{
			Code:    ErrInvalidArgument,
			Message: "logical path must be absolute",
			Path:    p,
		}
	}
	return path.Clean(p), nil
}

// Parent returns the containing collection of p. The parent of the root is
// the root.
func Parent(p string) string {
	return path.Dir(p)
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(p)
}

// Join joins a collection path and a child name.
func Join(collection string, elem ...string) string {
	return path.Join(append([]string{collection}, elem...)...)
}

// Ancestors returns every collection containing p, nearest first, ending
// with the root. p itself is not included.
//
// Example:
//
//	Ancestors("/a/b/c.txt") // ["/a/b", "/a", "/"]
//	Ancestors("/")          // []
func Ancestors(p string) []string {
	if p == RootPath {
		return nil
	}

	var chain []string
	for dir := Parent(p); ; dir = Parent(dir) {
		chain = append(chain, dir)
		if dir == RootPath {
			break
		}
	}
	return chain
}

// IsWithin reports whether p is root or lies beneath it.
func IsWithin(p, root string) bool {
	if root == RootPath || p == root {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// Rebase moves p from beneath oldRoot to beneath newRoot. p must be within
// oldRoot.
func Rebase(p, oldRoot, newRoot string) string {
	if p == oldRoot {
		return newRoot
	}
	rel := strings.TrimPrefix(p, oldRoot)
	if oldRoot == RootPath {
		rel = "/" + rel
	}
	return path.Join(newRoot, rel)
}

// SubtreePrefix returns the string prefix shared by every strict
// descendant of root.
func SubtreePrefix(root string) string {
	if root == RootPath {
		return RootPath
	}
	return root + "/"
}
