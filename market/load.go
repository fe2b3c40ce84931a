package market

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format names a supported on-disk series format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// FormatOf infers the format from a file extension. An explicit name
// ("csv", "parquet") overrides the extension when non-empty.
func FormatOf(path, name string) (Format, error) {
	if name != "" {
		switch Format(strings.ToLower(name)) {
		case FormatCSV:
			return FormatCSV, nil
		case FormatParquet:
			return FormatParquet, nil
		}
		return "", fmt.Errorf("unsupported format %q (csv, parquet)", name)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("cannot infer format of %q (csv, parquet)", path)
}

// Load reads a series in the given format, or the one implied by the path.
func Load(path, format string) (Series, error) {
	fm, err := FormatOf(path, format)
	if err != nil {
		return nil, err
	}
	switch fm {
	case FormatParquet:
		return LoadParquet(path)
	default:
		return LoadCSV(path)
	}
}

// Save writes a series in the given format, or the one implied by the path.
func Save(path, format string, s Series) error {
	fm, err := FormatOf(path, format)
	if err != nil {
		return err
	}
	if fm == FormatParquet {
		return SaveParquet(path, s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(out, s); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
