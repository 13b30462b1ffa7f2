package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"discourse-search-platform/models"
	"discourse-search-platform/utils"
)

// recognizedConfigKeys is the closed set accepted in corpus config files.
// Anything else fails the affected file with a config error.
var recognizedConfigKeys = map[string]bool{
	"language":          true,
	"ocr_engine":        true,
	"header_regex":      true,
	"footer_regex":      true,
	"verse_detection":   true,
	"qa_markers":        true,
	"chunk_strategy":    true,
	"chunk_size":        true,
	"chunk_overlap":     true,
	"categories":        true,
	"file_url_template": true,
	"min_left_indent":   true,
	"short_line_chars":  true,
	"crop_top_pct":      true,
	"crop_bottom_pct":   true,
}

const configFileName = "config.json"

// ConfigResolver merges hierarchical corpus configuration. Every config.json
// between the corpus root and the PDF applies in order, deepest last, then the
// optional "<filename>_config.json" sitting next to the file.
type ConfigResolver struct {
	corpusRoot string
}

func NewConfigResolver(corpusRoot string) *ConfigResolver {
	return &ConfigResolver{corpusRoot: corpusRoot}
}

// Resolve computes the effective config for one PDF path (absolute or
// corpus-relative) together with its canonical hash.
func (r *ConfigResolver) Resolve(pdfPath string) (*models.ResolvedConfig, string, error) {
	rel, err := filepath.Rel(r.corpusRoot, pdfPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		// Path already relative to the root
		rel = pdfPath
	}

	cfg := models.DefaultResolvedConfig()

	// Root config, then one per subdirectory down to the file's directory.
	dirs := []string{r.corpusRoot}
	dir := filepath.Dir(rel)
	if dir != "." {
		prefix := r.corpusRoot
		for _, part := range strings.Split(dir, string(filepath.Separator)) {
			prefix = filepath.Join(prefix, part)
			dirs = append(dirs, prefix)
		}
	}

	for _, d := range dirs {
		if err := applyConfigFile(&cfg, filepath.Join(d, configFileName)); err != nil {
			return nil, "", WrapError(KindConfig, pdfPath, err)
		}
	}

	// Per-file override: "<name without .pdf>_config.json"
	base := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	perFile := filepath.Join(r.corpusRoot, filepath.Dir(rel), base+"_config.json")
	if err := applyConfigFile(&cfg, perFile); err != nil {
		return nil, "", WrapError(KindConfig, pdfPath, err)
	}

	hash, err := utils.CanonicalJSONHash(cfg)
	if err != nil {
		return nil, "", WrapError(KindConfig, pdfPath, err)
	}

	return &cfg, hash, nil
}

// applyConfigFile overlays one config file onto cfg. Missing files are fine;
// malformed files and unrecognized keys are not.
func applyConfigFile(cfg *models.ResolvedConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("malformed config %s: %w", path, err)
	}

	for key := range raw {
		if !recognizedConfigKeys[key] {
			return fmt.Errorf("unknown config key %q in %s", key, path)
		}
	}

	// Unmarshal over the accumulated struct: present keys replace wholesale
	// (lists and maps are not merged), absent keys keep the shallower value.
	replaceListsAndMaps(cfg, raw)
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config values in %s: %w", path, err)
	}

	return nil
}

// replaceListsAndMaps clears collection fields that the override defines, so
// json.Unmarshal replaces them instead of appending/merging.
func replaceListsAndMaps(cfg *models.ResolvedConfig, raw map[string]json.RawMessage) {
	if _, ok := raw["header_regex"]; ok {
		cfg.HeaderRegex = nil
	}
	if _, ok := raw["footer_regex"]; ok {
		cfg.FooterRegex = nil
	}
	if _, ok := raw["qa_markers"]; ok {
		cfg.QAMarkers = nil
	}
	if _, ok := raw["categories"]; ok {
		cfg.Categories = nil
	}
}
