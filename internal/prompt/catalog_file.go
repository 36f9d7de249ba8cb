package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCatalogFile reads a YAML catalog override from path. See
// [LoadCatalog] for the expected document shape.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: open catalog %q: %w", path, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog decodes a YAML catalog. The document is a mapping from
// dimension name to a mapping of label to fragment:
//
//	interviewer_role:
//	  Recruiter: "You are an external recruiter..."
//	difficulty:
//	  "3": "Ask standard complexity questions expected for the role."
//
// Unknown dimension names are rejected.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var raw map[string]map[string]string
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("prompt: decode catalog: %w", err)
	}

	known := make(map[Dimension]bool, len(Dimensions))
	for _, d := range Dimensions {
		known[d] = true
	}

	c := make(Catalog, len(raw))
	for name, entries := range raw {
		dim := Dimension(name)
		if !known[dim] {
			return nil, fmt.Errorf("prompt: unknown catalog dimension %q", name)
		}
		c[dim] = entries
	}
	return c, nil
}
