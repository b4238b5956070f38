// Package bundle archives a described Package: every resource's
// original source file plus, optionally, the JSON descriptor, into a
// single zip file. Ported from the original implementation's
// directory-zipping bundler (zip_dir): walk entries, deflate, fixed
// unix permissions.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/csvdescribe/csvdescribe/internal/descriptor"
	"github.com/csvdescribe/csvdescribe/internal/model"
)

// Options controls what WriteFile includes in the archive.
type Options struct {
	IncludeDescriptor bool
	DescriptorName    string // defaults to "datapackage.json"
}

// WriteFile writes pkg's resources (and optionally its descriptor)
// into a new zip archive at path.
func WriteFile(path string, pkg *model.Package, opts Options) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bundle: create %s: %w", path, err)
	}
	defer dst.Close()

	zw := zip.NewWriter(dst)

	for _, res := range pkg.Resources {
		if res == nil || res.Path == "" {
			continue
		}
		if err := addFile(zw, res.Path, filepath.Base(res.Path)); err != nil {
			zw.Close()
			return fmt.Errorf("bundle: add %s: %w", res.Path, err)
		}
	}

	if opts.IncludeDescriptor {
		name := opts.DescriptorName
		if name == "" {
			name = "datapackage.json"
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("bundle: create %s: %w", name, err)
		}
		if err := descriptor.Encode(w, pkg); err != nil {
			zw.Close()
			return fmt.Errorf("bundle: encode descriptor: %w", err)
		}
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, srcPath, archiveName string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = archiveName
	header.Method = zip.Deflate
	header.SetMode(0o755)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
