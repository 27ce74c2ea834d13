package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// Load reads every neuron in a file, choosing the reader by extension.
func Load(path string) ([]*skeleton.Neuron, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".swc":
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		n, err := ReadSWC(f, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*skeleton.Neuron{n}, nil
	case ".json":
		neurons, err := ReadCATMAID(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return neurons, nil
	default:
		return nil, fmt.Errorf("unsupported skeleton format %q (want .swc or .json)", ext)
	}
}

// LoadSingle reads a file that must contain exactly one neuron.
func LoadSingle(path string) (*skeleton.Neuron, error) {
	neurons, err := Load(path)
	if err != nil {
		return nil, err
	}
	return skeleton.Single(neurons)
}
