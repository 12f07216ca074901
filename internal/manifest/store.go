package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// Path returns the manifest location under a volume root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads and decodes the manifest stored under root. A missing file
// is reported with an error satisfying errors.Is(err, os.ErrNotExist).
func Load(root string) (Manifest, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		return Manifest{}, err
	}
	return Decode(data)
}

// Save encodes m and writes it under root through a temporary file that
// is renamed into place.
func Save(root string, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	final := Path(root)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install manifest: %w", err)
	}
	return nil
}
