// Package hclload implements the config.Loader interface for HCL files: it
// discovers .hcl files under the given paths, decodes them against the
// schema package, and translates the result into the format-agnostic model.
package hclload

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/fsutil"
	"github.com/vk/snipweave/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Settings    []*schema.Settings   `hcl:"settings,block"`
	Collections []*schema.Collection `hcl:"collection,block"`
	Remain      hcl.Body             `hcl:",remain"`
}

// Load orchestrates the entire HCL loading process. Collections with the
// same name across files are merged; a second settings block is an error.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	model := &config.Model{Settings: config.Default()}
	parser := hclparse.NewParser()

	byName := make(map[string]*config.Collection)
	settingsFile := ""

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, s := range root.Settings {
			if settingsFile != "" {
				return nil, fmt.Errorf("duplicate settings block in %s: already defined in %s", file, settingsFile)
			}
			settingsFile = file
			model.Settings = translateSettings(s)
		}

		for _, col := range root.Collections {
			translated, err := l.translateCollection(ctx, col)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if existing, ok := byName[translated.Name]; ok {
				existing.Snippets = append(existing.Snippets, translated.Snippets...)
				if existing.Description == "" {
					existing.Description = translated.Description
				}
				existing.Restricted = existing.Restricted || translated.Restricted
				continue
			}
			byName[translated.Name] = translated
			model.Collections = append(model.Collections, translated)
		}
	}

	if err := checkUnique(model); err != nil {
		return nil, err
	}
	if err := model.Settings.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("HCL loading complete.", "collections", len(model.Collections), "snippets", countSnippets(model))
	return model, nil
}

// findAllHCLFiles resolves each path to a flat, ordered list of .hcl files.
// A path may be a single file or a directory to walk. Missing paths are
// skipped so optional config locations can be probed.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		var found []string
		if info.IsDir() {
			found, err = fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
		} else {
			found = []string{path}
		}

		for _, f := range found {
			if _, wasSeen := seen[f]; wasSeen {
				continue
			}
			seen[f] = struct{}{}
			allFiles = append(allFiles, f)
		}
	}

	return allFiles, nil
}

// checkUnique rejects duplicate snippet IDs (globally) and duplicate
// triggers within one collection.
func checkUnique(model *config.Model) error {
	ids := make(map[string]string)
	for _, col := range model.Collections {
		triggers := make(map[string]struct{})
		for _, s := range col.Snippets {
			if _, dup := triggers[s.Trigger]; dup {
				return fmt.Errorf("collection %q: duplicate trigger %q", col.Name, s.Trigger)
			}
			triggers[s.Trigger] = struct{}{}

			if other, dup := ids[s.ID]; dup {
				return fmt.Errorf("duplicate snippet id %q in collections %q and %q", s.ID, other, col.Name)
			}
			ids[s.ID] = col.Name
		}
	}
	return nil
}

func countSnippets(model *config.Model) int {
	n := 0
	for _, col := range model.Collections {
		n += len(col.Snippets)
	}
	return n
}
