package export

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	seedBaseName  = "main_page"
	indexBaseName = "index"
	// maxCollisionSuffix bounds the _N search so a broken filesystem cannot spin forever.
	maxCollisionSuffix = 10000
)

var invalidFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// BaseName derives the extension-less file name for a page.
func BaseName(pageURL string, isSeed bool) string {
	if isSeed {
		return seedBaseName
	}
	path := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		path = u.Path
	}
	name := strings.Trim(path, "/")
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	name = invalidFilenameChars.ReplaceAllString(name, "")
	if name == "" || strings.Trim(name, ".") == "" {
		return indexBaseName
	}
	return name
}

// createUnique opens dir/base.ext exclusively, trying base_1.ext, base_2.ext
// and so on when the name is taken. It returns the file and its name.
func createUnique(dir, base, ext string) (*os.File, string, error) {
	for n := 0; n <= maxCollisionSuffix; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %s%s", base, ext)
}

// writeUnique stores data under a collision-free name and returns that name.
func writeUnique(dir, base, ext string, data []byte) (string, error) {
	return writeUniqueWith(dir, base, ext, data, (*os.File).Close)
}

// writeUniqueWith is writeUnique with the close step injected. A failed write
// or close removes the partial file.
func writeUniqueWith(dir, base, ext string, data []byte, closeFn func(*os.File) error) (string, error) {
	f, name, err := createUnique(dir, base, ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(filepath.Join(dir, name))
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := closeFn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(filepath.Join(dir, name))
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}
