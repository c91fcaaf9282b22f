package codebook

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/natural-conversion/internal/transition"
)

// File is the YAML form of a codebook.
//
//	name: esa-cci-transitions
//	entries:
//	  - {code: 10030, meaning: 1}
type File struct {
	Name    string      `yaml:"name,omitempty"`
	Entries []FileEntry `yaml:"entries"`
}

// FileEntry is one code/meaning pair.
type FileEntry struct {
	Code    int32 `yaml:"code"`
	Meaning int16 `yaml:"meaning"`
}

// ReadYAML decodes a codebook from r.
func ReadYAML(r io.Reader) (*transition.Codebook, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, eris.Wrap(err, "codebook: decode yaml")
	}
	codes := make([]int32, len(f.Entries))
	meanings := make([]int16, len(f.Entries))
	for i, e := range f.Entries {
		codes[i] = e.Code
		meanings[i] = e.Meaning
	}
	return transition.NewCodebook(codes, meanings)
}

// LoadYAML reads a codebook file.
func LoadYAML(path string) (*transition.Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "codebook: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadYAML(f)
}

// WriteYAML encodes cb sorted by code.
func WriteYAML(w io.Writer, name string, cb *transition.Codebook) error {
	f := File{Name: name}
	for _, e := range cb.Entries() {
		f.Entries = append(f.Entries, FileEntry{Code: e.Code, Meaning: e.Meaning})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return eris.Wrap(err, "codebook: encode yaml")
	}
	return enc.Close()
}

// Kind of codebook source.
type Kind string

const (
	KindMatrix Kind = "matrix"
	KindLegend Kind = "legend"
	KindYAML   Kind = "yaml"
)

// Source describes where a codebook comes from.
type Source struct {
	Path   string       `mapstructure:"path"`
	Kind   Kind         `mapstructure:"kind"` // empty: inferred from the extension
	Matrix MatrixLayout `mapstructure:"matrix"`
	Legend LegendLayout `mapstructure:"legend"`
}

// Load builds the codebook s describes. Spreadsheets default to matrix
// layout; set Kind to "legend" for recode sheets. Zero layouts fall back to
// the ESA defaults.
func Load(s Source) (*transition.Codebook, error) {
	if s.Path == "" {
		return nil, eris.New("codebook: no path")
	}
	kind := s.Kind
	if kind == "" {
		switch strings.ToLower(filepath.Ext(s.Path)) {
		case ".yaml", ".yml":
			kind = KindYAML
		case ".xlsx":
			kind = KindMatrix
		default:
			return nil, eris.Errorf("codebook: cannot infer kind of %s", s.Path)
		}
	}

	if s.Matrix == (MatrixLayout{}) {
		s.Matrix = DefaultMatrixLayout()
	}
	if s.Legend == (LegendLayout{}) {
		s.Legend = DefaultLegendLayout()
	}

	switch kind {
	case KindYAML:
		return LoadYAML(s.Path)
	case KindMatrix:
		return LoadMatrixXLSX(s.Path, s.Matrix)
	case KindLegend:
		return LoadLegendXLSX(s.Path, s.Legend)
	default:
		return nil, eris.Errorf("codebook: unknown kind %q", kind)
	}
}
