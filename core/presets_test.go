package core

import (
	"errors"
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	names := PresetNames()
	if len(names) != 4 {
		t.Fatalf("PresetNames = %v", names)
	}
	for _, name := range names {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		warnings, err := cfg.Validate()
		if err != nil {
			t.Fatalf("preset %q invalid: %v", name, err)
		}
		if len(warnings) != 0 {
			t.Errorf("preset %q warnings: %v", name, warnings)
		}
		if err := ValidateDisjoint(cfg.Areas()); err != nil {
			t.Errorf("preset %q broker areas overlap: %v", name, err)
		}
	}
}

func TestPreset_ReturnsFreshCopy(t *testing.T) {
	a, _ := Preset("hiking")
	a.Topics[0].PublishProbability = 0

	b, _ := Preset("hiking")
	if b.Topics[0].PublishProbability != 10 {
		t.Fatalf("preset mutated through a previous copy")
	}
}

func TestPreset_Unknown(t *testing.T) {
	if _, err := Preset("nope"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}
