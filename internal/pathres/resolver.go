// Package pathres confines client-supplied file paths to the data root.
package pathres

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ajaxzhan/fileserver/pkg/types"
)

// Resolver turns a FilePath into an absolute path under a fixed root.
// It does not check existence or permissions.
type Resolver struct {
	root string
}

// New creates a resolver for dataRoot, which must be an absolute directory path.
func New(dataRoot string) (*Resolver, error) {
	if dataRoot == "" {
		return nil, errors.New("data root cannot be empty")
	}
	if !filepath.IsAbs(dataRoot) {
		return nil, fmt.Errorf("data root must be absolute: %q", dataRoot)
	}
	return &Resolver{root: filepath.Clean(dataRoot)}, nil
}

// Root returns the data root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve validates fp and joins it onto the data root.
//
// Any occurrence of ".." is rejected, including names like "a..b" that do not
// traverse; the check is deliberately coarse.
func (r *Resolver) Resolve(fp types.FilePath) (string, error) {
	if r == nil || r.root == "" {
		panic("pathres: resolve called without a data root")
	}

	rel := fp.Relative()
	if strings.HasPrefix(rel, "/") {
		return "", types.NewError(types.KindInvalidPath, "resolve", rel, "absolute paths not permitted")
	}
	if strings.Contains(rel, "..") {
		return "", types.NewError(types.KindInvalidPath, "resolve", rel, "up paths not permitted")
	}

	return filepath.Join(r.root, rel), nil
}
