package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/models"
	"discourse-search-platform/utils"
)

type memoryStateStore struct {
	rows map[string]*models.FileState
}

func (m *memoryStateStore) Get(ctx context.Context, path string) (*models.FileState, error) {
	if state, ok := m.rows[path]; ok {
		row := *state
		return &row, nil
	}
	return nil, nil
}

func (m *memoryStateStore) Upsert(ctx context.Context, state *models.FileState) error {
	row := *state
	m.rows[state.Path] = &row
	return nil
}

func (m *memoryStateStore) All(ctx context.Context, fn func(*models.FileState) error) error {
	for _, state := range m.rows {
		row := *state
		if err := fn(&row); err != nil {
			return err
		}
	}
	return nil
}

type recordingDispatcher struct {
	ingested []string
	metadata []string
	deleted  []string
}

func (r *recordingDispatcher) DispatchIngest(ctx context.Context, relPath string) error {
	r.ingested = append(r.ingested, relPath)
	return nil
}

func (r *recordingDispatcher) DispatchMetadataUpdate(ctx context.Context, relPath string) error {
	r.metadata = append(r.metadata, relPath)
	return nil
}

func (r *recordingDispatcher) DispatchDelete(ctx context.Context, relPath string) error {
	r.deleted = append(r.deleted, relPath)
	return nil
}

func discoveryFixture(t *testing.T) (*Discovery, *memoryStateStore, *recordingDispatcher, string) {
	t.Helper()
	root := t.TempDir()
	store := &memoryStateStore{rows: map[string]*models.FileState{}}
	dispatcher := &recordingDispatcher{}
	d := NewDiscovery(&config.Config{CorpusRoot: root}, NewConfigResolver(root), store, dispatcher, nil)
	return d, store, dispatcher, root
}

func writeCorpusFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return abs
}

// indexedState builds a state row matching the file currently on disk.
func indexedState(t *testing.T, d *Discovery, root, rel string) *models.FileState {
	t.Helper()
	abs := filepath.Join(root, rel)
	fi, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	sha, err := utils.FileSha256(abs)
	if err != nil {
		t.Fatal(err)
	}
	_, configHash, err := d.resolver.Resolve(rel)
	if err != nil {
		t.Fatal(err)
	}
	return &models.FileState{
		Path:       rel,
		PDFSha256:  sha,
		ConfigHash: configHash,
		Size:       fi.Size(),
		ModTime:    fi.ModTime(),
		Status:     models.StatusIndexed,
	}
}

func TestClassifyNewFile(t *testing.T) {
	d, _, _, root := discoveryFixture(t)
	abs := writeCorpusFile(t, root, "talks/a.pdf", "pravachan one")

	item, err := d.Classify(context.Background(), abs, "talks/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if item.Kind != models.WorkNew {
		t.Errorf("expected NEW, got %s", item.Kind)
	}

	sha, err := utils.FileSha256(abs)
	if err != nil {
		t.Fatal(err)
	}
	if item.PDFSha256 != sha {
		t.Errorf("new file must carry its content hash, got %s", item.PDFSha256)
	}
}

func TestClassifyUnchangedFile(t *testing.T) {
	d, store, _, root := discoveryFixture(t)
	abs := writeCorpusFile(t, root, "talks/a.pdf", "pravachan one")
	store.rows["talks/a.pdf"] = indexedState(t, d, root, "talks/a.pdf")

	item, err := d.Classify(context.Background(), abs, "talks/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if item.Kind != models.WorkUnchanged {
		t.Errorf("expected UNCHANGED, got %s", item.Kind)
	}
}

func TestClassifyTrustsFingerprintWhenStatUnchanged(t *testing.T) {
	d, store, _, root := discoveryFixture(t)
	abs := writeCorpusFile(t, root, "talks/a.pdf", "pravachan one")

	state := indexedState(t, d, root, "talks/a.pdf")
	state.PDFSha256 = "recorded-without-rehash"
	store.rows["talks/a.pdf"] = state

	item, err := d.Classify(context.Background(), abs, "talks/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if item.Kind != models.WorkUnchanged {
		t.Errorf("matching size and mtime must skip rehashing, got %s", item.Kind)
	}
	if item.PDFSha256 != "recorded-without-rehash" {
		t.Errorf("recorded hash must be reused, got %s", item.PDFSha256)
	}
}

func TestClassifyContentChange(t *testing.T) {
	d, store, _, root := discoveryFixture(t)
	abs := writeCorpusFile(t, root, "talks/a.pdf", "pravachan one")
	store.rows["talks/a.pdf"] = indexedState(t, d, root, "talks/a.pdf")

	writeCorpusFile(t, root, "talks/a.pdf", "pravachan one, second revision")

	item, err := d.Classify(context.Background(), abs, "talks/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if item.Kind != models.WorkContentChange {
		t.Errorf("expected CONTENT_CHANGED, got %s", item.Kind)
	}

	sha, err := utils.FileSha256(abs)
	if err != nil {
		t.Fatal(err)
	}
	if item.PDFSha256 != sha {
		t.Errorf("changed file must carry the fresh hash, got %s", item.PDFSha256)
	}
}

func TestClassifyFailedFileIsReprocessed(t *testing.T) {
	d, store, _, root := discoveryFixture(t)
	abs := writeCorpusFile(t, root, "talks/a.pdf", "pravachan one")

	state := indexedState(t, d, root, "talks/a.pdf")
	state.Status = models.StatusFailed
	store.rows["talks/a.pdf"] = state

	item, err := d.Classify(context.Background(), abs, "talks/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if item.Kind != models.WorkContentChange {
		t.Errorf("failed files retry as content changes, got %s", item.Kind)
	}
}

func TestClassifyConfigChange(t *testing.T) {
	d, store, _, root := discoveryFixture(t)
	abs := writeCorpusFile(t, root, "talks/a.pdf", "pravachan one")
	store.rows["talks/a.pdf"] = indexedState(t, d, root, "talks/a.pdf")

	writeCorpusFile(t, root, "config.json", `{"language": "gu"}`)

	item, err := d.Classify(context.Background(), abs, "talks/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if item.Kind != models.WorkConfigChange {
		t.Errorf("expected CONFIG_CHANGED, got %s", item.Kind)
	}
}

func TestClassifyMissingFileReportsIOKind(t *testing.T) {
	d, _, _, root := discoveryFixture(t)

	_, err := d.Classify(context.Background(), filepath.Join(root, "gone.pdf"), "gone.pdf")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if kind := KindOf(err, KindFatal); kind != KindIO {
		t.Errorf("stat failure must classify as io, got %s", kind)
	}
}

func TestScanUnchangedCorpusDispatchesNothing(t *testing.T) {
	d, store, dispatcher, root := discoveryFixture(t)
	for _, rel := range []string{"talks/a.pdf", "granths/b.pdf"} {
		writeCorpusFile(t, root, rel, "text of "+rel)
		store.rows[rel] = indexedState(t, d, root, rel)
	}

	stats, err := d.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unchanged != 2 {
		t.Errorf("expected 2 unchanged, got %+v", stats)
	}
	if len(dispatcher.ingested)+len(dispatcher.metadata)+len(dispatcher.deleted) != 0 {
		t.Errorf("unchanged corpus must dispatch no work: %+v", dispatcher)
	}
}

func TestScanDispatchesNewAndDeleted(t *testing.T) {
	d, store, dispatcher, root := discoveryFixture(t)
	writeCorpusFile(t, root, "talks/fresh.pdf", "new discourse")
	store.rows["talks/removed.pdf"] = &models.FileState{
		Path:      "talks/removed.pdf",
		PDFSha256: "abc",
		Status:    models.StatusIndexed,
	}

	stats, err := d.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.New != 1 || stats.Deleted != 1 {
		t.Errorf("expected 1 new and 1 deleted, got %+v", stats)
	}
	if len(dispatcher.ingested) != 1 || dispatcher.ingested[0] != "talks/fresh.pdf" {
		t.Errorf("unexpected ingest dispatches: %v", dispatcher.ingested)
	}
	if len(dispatcher.deleted) != 1 || dispatcher.deleted[0] != "talks/removed.pdf" {
		t.Errorf("unexpected delete dispatches: %v", dispatcher.deleted)
	}
}
