// Package pathguard resolves user-supplied file names against a base
// directory and rejects anything that would land outside it. It proves
// containment only; callers still validate extension and content type.
package pathguard

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/keyxmakerx/minutes/internal/apperror"
)

// ErrPathEscape is returned when the resolved path is not inside baseDir.
var ErrPathEscape = &apperror.AppError{
	Code:    http.StatusBadRequest,
	Type:    "path_escape",
	Message: "invalid file path",
}

// Resolve joins name onto baseDir and returns the absolute result if it is
// baseDir itself or lies beneath it. The prefix check is made on a path
// segment boundary, so "/srv/media-old" is not inside "/srv/media".
func Resolve(baseDir, name string) (string, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}

	if strings.ContainsRune(name, 0) {
		return "", ErrPathEscape
	}

	resolved := filepath.Join(base, name)
	if resolved == base {
		return resolved, nil
	}

	prefix := base
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if !strings.HasPrefix(resolved, prefix) {
		return "", ErrPathEscape
	}
	return resolved, nil
}
