// Package mediafs reads user-picked media files from a confined root.
//
// The native-picker path hands the pipeline a filesystem path; everything
// read through here stays under the configured media root, is capped at the
// boundary size limit for its kind, and carries a mime type derived from
// the file extension so the artifact builder can validate it.
package mediafs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"fieldreport/internal/artifact"
)

var extMIMEs = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

// PickedFile is the raw material for Builder.FromPickedFile.
type PickedFile struct {
	Name string
	MIME string
	Data []byte
}

// FS reads media files relative to a fixed root, with symlinks resolved.
type FS struct {
	absRoot string
}

func New(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("mediafs: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("mediafs: root is not a directory")
	}
	return &FS{absRoot: abs}, nil
}

// Root returns the absolute media root.
func (f *FS) Root() string {
	if f == nil {
		return ""
	}
	return f.absRoot
}

// MIMEForPath maps a filename extension onto its media mime type.
func MIMEForPath(path string) (string, bool) {
	mime, ok := extMIMEs[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}

// Read loads one picked file. Files larger than the video boundary cap are
// refused outright; per-kind limits are enforced later by the builder.
func (f *FS) Read(userPath string) (PickedFile, error) {
	p, err := f.resolve(userPath)
	if err != nil {
		return PickedFile{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return PickedFile{}, err
	}
	if info.IsDir() {
		return PickedFile{}, errors.New("mediafs: path is a directory")
	}
	if info.Size() > artifact.MaxVideoBytes {
		return PickedFile{}, fmt.Errorf("%w: %s is %d bytes", artifact.ErrTooLarge, info.Name(), info.Size())
	}
	mime, ok := MIMEForPath(p)
	if !ok {
		return PickedFile{}, fmt.Errorf("%w: %s", artifact.ErrUnsupportedFormat, filepath.Ext(p))
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return PickedFile{}, err
	}
	return PickedFile{Name: filepath.Base(p), MIME: mime, Data: data}, nil
}

func (f *FS) resolve(userPath string) (string, error) {
	if f == nil {
		return "", errors.New("mediafs: filesystem not configured")
	}
	if userPath == "" {
		return "", errors.New("mediafs: empty path")
	}
	clean := filepath.Clean(userPath)

	isAbs := filepath.IsAbs(clean) || (runtime.GOOS == "windows" && filepath.VolumeName(clean) != "")
	if !isAbs {
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", errors.New("mediafs: path traversal not allowed")
		}
		clean = filepath.Join(f.absRoot, clean)
	}

	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, f.absRoot) {
		return "", fmt.Errorf("mediafs: resolved outside root (root=%s, path=%s)", f.absRoot, resolved)
	}
	return resolved, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
