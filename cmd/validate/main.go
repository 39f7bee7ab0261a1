package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/migrate"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <campaign.json|campaign.yaml> [template]\n", os.Args[0])
		os.Exit(1)
	}

	templateID := system.DefaultID
	if len(os.Args) == 3 {
		templateID = os.Args[2]
	}

	validator := &CampaignValidator{}
	if err := validator.validateFile(os.Args[1], templateID); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Campaign file is valid!")
}

type CampaignValidator struct {
	steps    []string
	warnings []string
}

func (v *CampaignValidator) validateFile(filename, templateID string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("campaign file must have a .json, .yaml or .yml extension: %s", baseName)
	}
	if !isValidCampaignFilename(strings.TrimSuffix(baseName, ext)) {
		return fmt.Errorf("campaign filename '%s' must be lowercase snake_case (e.g., rotwood_blight%s)", baseName, ext)
	}

	tmpl, err := system.Get(templateID)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	c, err := v.decode(data, ext)
	for _, step := range v.steps {
		fmt.Printf("  migrated: %s\n", step)
	}
	if err != nil {
		var verr *campaign.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("validation errors in %s:\n  %s", filename, strings.Join(verr.Problems, "\n  "))
		}
		return err
	}

	v.warnings = campaign.Warnings(c, tmpl.Vocabulary())
	for _, w := range v.warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	fmt.Printf("%q: %d beats, %d NPCs, %d locations, %d threat stages (template %s)\n",
		c.Name, len(c.Beats), len(c.NPCs), len(c.Locations), len(c.Threat.Stages), tmpl.ID)
	return nil
}

// decode reads YAML strictly. JSON may be in a legacy shape and is
// migrated first; the applied steps are kept for reporting.
func (v *CampaignValidator) decode(data []byte, ext string) (*campaign.Content, error) {
	if ext != ".json" {
		return campaign.DecodeYAML(data)
	}

	migrated, steps, err := migrate.Content(data)
	if err != nil {
		return nil, &campaign.ValidationError{Problems: []string{err.Error()}}
	}
	v.steps = steps
	return campaign.DecodeJSON(migrated)
}

var filenamePattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

func isValidCampaignFilename(name string) bool {
	return filenamePattern.MatchString(name)
}
