package sink

import (
	"os"
	"path/filepath"

	"github.com/dchest/uniuri"
	"github.com/pkg/errors"
)

// partFile is written next to its final path and renamed into place on commit,
// so an interrupted recording never leaves a truncated file under that name.
type partFile struct {
	*os.File
	final string
}

func createPartFile(path string) (*partFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	tmp := path + "." + uniuri.NewLen(8) + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create output file")
	}
	return &partFile{File: f, final: path}, nil
}

// commit syncs the file and renames it to its final path.
func (p *partFile) commit() error {
	if err := p.Sync(); err != nil {
		p.File.Close()
		return errors.Wrap(err, "sync output")
	}
	if err := p.File.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	if err := os.Rename(p.Name(), p.final); err != nil {
		return errors.Wrapf(err, "rename output to %s", p.final)
	}
	return nil
}

// discard removes the partial file.
func (p *partFile) discard() error {
	p.File.Close()
	if err := os.Remove(p.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove partial output")
	}
	return nil
}
