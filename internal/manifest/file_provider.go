package manifest

import (
	"context"
	"os"

	"github.com/kgroner/enisyncd/internal/errors"
)

// FileProvider reads the manifest from a local JSON file. Intended for
// development and for hosts that sync the manifest out of band.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Fetch(_ context.Context) ([]InterfaceDescriptor, error) {
	body, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.NewFetchError("failed to read manifest file", err)
	}
	return decodeManifest(body)
}
