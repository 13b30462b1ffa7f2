package services

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveDefaultsWithoutConfigs(t *testing.T) {
	root := t.TempDir()
	resolver := NewConfigResolver(root)

	cfg, hash, err := resolver.Resolve("talks/morning.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "hi" || cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if hash == "" {
		t.Error("hash must not be empty")
	}
}

func TestResolveDeeperConfigWins(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"language": "hi", "chunk_size": 800}`)
	writeConfig(t, filepath.Join(root, "gujarati"), "config.json", `{"language": "gu"}`)
	resolver := NewConfigResolver(root)

	cfg, _, err := resolver.Resolve(filepath.Join("gujarati", "granth.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "gu" {
		t.Errorf("deeper language should win, got %q", cfg.Language)
	}
	if cfg.ChunkSize != 800 {
		t.Errorf("shallower chunk_size should survive, got %d", cfg.ChunkSize)
	}
}

func TestResolvePerFileOverride(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"chunk_size": 800}`)
	writeConfig(t, root, "special_config.json", `{"chunk_size": 400}`)
	resolver := NewConfigResolver(root)

	cfg, _, err := resolver.Resolve("special.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != 400 {
		t.Errorf("per-file override should win, got %d", cfg.ChunkSize)
	}

	other, _, err := resolver.Resolve("other.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if other.ChunkSize != 800 {
		t.Errorf("sibling file must not see the override, got %d", other.ChunkSize)
	}
}

func TestResolveListsReplaceNotMerge(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"header_regex": ["root-a", "root-b"], "qa_markers": ["प्रश्न:-"]}`)
	writeConfig(t, filepath.Join(root, "sub"), "config.json", `{"header_regex": ["child-only"]}`)
	resolver := NewConfigResolver(root)

	cfg, _, err := resolver.Resolve(filepath.Join("sub", "doc.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.HeaderRegex) != 1 || cfg.HeaderRegex[0] != "child-only" {
		t.Errorf("lists must replace wholesale, got %v", cfg.HeaderRegex)
	}
	if len(cfg.QAMarkers) != 1 {
		t.Errorf("untouched list must survive, got %v", cfg.QAMarkers)
	}
}

func TestResolveRejectsUnknownKeys(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"chunk_sizes": 500}`)
	resolver := NewConfigResolver(root)

	_, _, err := resolver.Resolve("doc.pdf")
	if err == nil {
		t.Fatal("expected unknown key error")
	}
	if KindOf(err, "") != KindConfig {
		t.Errorf("expected config error kind, got %s", KindOf(err, ""))
	}
}

func TestResolveRejectsMalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"language": `)
	resolver := NewConfigResolver(root)

	if _, _, err := resolver.Resolve("doc.pdf"); err == nil {
		t.Fatal("expected malformed config error")
	}
}

func TestResolveHashIsStable(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"categories": {"series": ["samaysar"], "content_type": ["granth"]}}`)
	resolver := NewConfigResolver(root)

	_, first, err := resolver.Resolve("doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := resolver.Resolve("doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("hash not stable: %s vs %s", first, second)
	}

	cfg, _, err := resolver.Resolve("doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ContentType() != "granth" {
		t.Errorf("expected granth content type, got %q", cfg.ContentType())
	}
}

func TestResolveHashChangesWithConfig(t *testing.T) {
	root := t.TempDir()
	resolver := NewConfigResolver(root)

	_, before, err := resolver.Resolve("doc.pdf")
	if err != nil {
		t.Fatal(err)
	}

	writeConfig(t, root, "config.json", `{"chunk_size": 500}`)
	_, after, err := resolver.Resolve("doc.pdf")
	if err != nil {
		t.Fatal(err)
	}

	if before == after {
		t.Error("hash must change when the effective config changes")
	}
}
