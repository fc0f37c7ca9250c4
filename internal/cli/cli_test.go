package cli

import (
	"path/filepath"
	"testing"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/blocking"
)

func TestSelectSimulationsDefault(t *testing.T) {
	sims, err := selectSimulations(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sims) != len(defaultSimulations) {
		t.Errorf("expected %d simulations, got %d", len(defaultSimulations), len(sims))
	}
}

func TestSelectSimulationsFilter(t *testing.T) {
	sims, err := selectSimulations([]string{"Import", " validate "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sims) != 2 {
		t.Fatalf("expected 2 simulations, got %d", len(sims))
	}
	if sims[0].name != "import" || sims[1].name != "validate" {
		t.Errorf("unexpected selection: %v, %v", sims[0].name, sims[1].name)
	}
}

func TestSelectSimulationsUnknown(t *testing.T) {
	if _, err := selectSimulations([]string{"defragment"}); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestSettingsPathFlagOverride(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = filepath.Join(t.TempDir(), "custom.ini")
	path, err := settingsPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != cfgFile {
		t.Errorf("expected %q, got %q", cfgFile, path)
	}
}

func TestBuildResourceTreeBlocking(t *testing.T) {
	coord := blocking.New()
	tree := buildResourceTree(coord)

	if len(tree.elements) == 0 {
		t.Fatal("expected resources to be registered")
	}

	err := coord.RunOperation("import", func() error {
		for _, el := range tree.elements {
			if el.IsEnabled() {
				t.Errorf("resource %s should be disabled during the operation", el.BlockableID())
			}
		}
		return nil
	}, blocking.WithGroups(tree.groups...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, el := range tree.elements {
		if !el.IsEnabled() {
			t.Errorf("resource %s should be re-enabled after the operation", el.BlockableID())
		}
	}
}
