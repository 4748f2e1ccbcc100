package deps

import "testing"

type fakeParser struct {
	filename string
	typeName string
}

func (p *fakeParser) Parse(path string, opts Options) (*ManifestResult, error) { return nil, nil }
func (p *fakeParser) Supports(name string) bool                                { return name == p.filename }
func (p *fakeParser) Type() string                                             { return p.typeName }
func (p *fakeParser) IncludesTransitive() bool                                 { return true }

func TestDetectManifest(t *testing.T) {
	lock := &fakeParser{filename: "package-lock.json", typeName: "package-lock.json"}
	poetry := &fakeParser{filename: "poetry.lock", typeName: "poetry.lock"}

	p, err := DetectManifest("/some/dir/poetry.lock", lock, poetry)
	if err != nil {
		t.Fatalf("DetectManifest() error: %v", err)
	}
	if p.Type() != "poetry.lock" {
		t.Errorf("Type() = %q, want poetry.lock", p.Type())
	}
}

func TestDetectManifestUnsupported(t *testing.T) {
	if _, err := DetectManifest("Gemfile.lock", &fakeParser{filename: "poetry.lock"}); err == nil {
		t.Error("DetectManifest() error = nil, want unsupported manifest")
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	if opts.MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", opts.MaxDepth, DefaultMaxDepth)
	}
	if opts.MaxNodes != DefaultMaxNodes {
		t.Errorf("MaxNodes = %d, want %d", opts.MaxNodes, DefaultMaxNodes)
	}
	if opts.Logger == nil {
		t.Error("Logger is nil, want no-op default")
	}

	custom := Options{MaxDepth: 3}.WithDefaults()
	if custom.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want caller's 3 preserved", custom.MaxDepth)
	}
}
