// Package buildconfig implements component C of the Project & Document
// Lifecycle Engine: resolving one project's effective configuration by
// merging smithy-build.json and .smithy-project.json (spec.md §4.3, §6).
package buildconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smithy-tools/smithy-ls/internal/fileutil"
)

const (
	// SmithyBuildFileName is the primary build-file name.
	SmithyBuildFileName = "smithy-build.json"
	// SmithyProjectFileName is the secondary, simpler build-file name.
	SmithyProjectFileName = ".smithy-project.json"
)

// MavenConfig is the merged Maven section of smithy-build.json.
type MavenConfig struct {
	Dependencies []string
	Repositories []string
}

// Config is the effective configuration of one project (spec.md §3's
// ProjectConfig). Sources and Imports are absolute, resolved,
// deduplicated file paths; they may name files that do not exist on
// disk (a missing declared file is not a config-time error, spec.md §4.3).
type Config struct {
	Version    string
	Sources    []string
	Imports    []string
	Maven      MavenConfig
	BuildFiles []string // absolute paths of build files that contributed
}

// smithyBuildJSON mirrors the schema in spec.md §6. Unknown keys ignored
// by encoding/json's default Unmarshal behavior.
type smithyBuildJSON struct {
	Version string   `json:"version"`
	Sources []string `json:"sources"`
	Imports []string `json:"imports"`
	Maven   *struct {
		Dependencies []string `json:"dependencies"`
		Repositories []struct {
			URL string `json:"url"`
		} `json:"repositories"`
	} `json:"maven"`
}

// smithyProjectJSON mirrors the schema in spec.md §6.
type smithyProjectJSON struct {
	Sources []string `json:"sources"`
}

// Load discovers and merges build files under root in the order
// spec.md §4.3 specifies: smithy-build.json, then .smithy-project.json.
// found reports whether any build file exists at all; when false the
// caller should treat the project as EMPTY (spec.md §3, Project.type).
// Parse errors are collected, never returned as a hard failure, per
// spec.md §4.3 ("errors during config parsing are collected, not thrown").
func Load(root string) (cfg *Config, found bool, errs []error) {
	cfg = &Config{}
	var sources, imports []string

	buildPath := filepath.Join(root, SmithyBuildFileName)
	if fileutil.IsFile(buildPath) {
		found = true
		cfg.BuildFiles = append(cfg.BuildFiles, buildPath)
		data, err := os.ReadFile(buildPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", buildPath, err))
		} else {
			var doc smithyBuildJSON
			if err := json.Unmarshal(data, &doc); err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", buildPath, err))
			} else {
				if doc.Version != "" {
					cfg.Version = doc.Version
				}
				sources = append(sources, doc.Sources...)
				imports = append(imports, doc.Imports...)
				if doc.Maven != nil {
					cfg.Maven.Dependencies = append(cfg.Maven.Dependencies, doc.Maven.Dependencies...)
					for _, r := range doc.Maven.Repositories {
						cfg.Maven.Repositories = append(cfg.Maven.Repositories, r.URL)
					}
				}
			}
		}
	}

	projectPath := filepath.Join(root, SmithyProjectFileName)
	if fileutil.IsFile(projectPath) {
		found = true
		cfg.BuildFiles = append(cfg.BuildFiles, projectPath)
		data, err := os.ReadFile(projectPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", projectPath, err))
		} else {
			var doc smithyProjectJSON
			if err := json.Unmarshal(data, &doc); err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", projectPath, err))
			} else {
				sources = append(sources, doc.Sources...)
			}
		}
	}

	if !found {
		return cfg, false, errs
	}

	cfg.Sources = resolvePaths(root, sources)
	cfg.Imports = resolvePaths(root, imports)
	return cfg, true, errs
}

// resolvePaths normalizes, resolves-against-root, expands directories
// and glob patterns, and deduplicates a declared sources/imports list.
func resolvePaths(root string, declared []string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, raw := range declared {
		norm := fileutil.NormalizeRel(raw)
		abs := norm
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, norm)
		}

		switch {
		case strings.ContainsAny(raw, "*?["):
			pattern := abs
			matches, err := fileutil.ExpandGlob(pattern)
			if err != nil {
				continue
			}
			for _, m := range matches {
				add(m)
			}
		case fileutil.IsDir(abs):
			files, err := fileutil.ExpandUnderDir(abs, ".smithy", ".json")
			if err != nil {
				continue
			}
			for _, f := range files {
				add(f)
			}
		default:
			add(abs)
		}
	}

	return out
}
