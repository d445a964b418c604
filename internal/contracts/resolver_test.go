package contracts

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create manifest dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestResolveVersionSpecificShadowsShared(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "C1.json"), `{"Metadata": {"Id": "C1", "Title": "Shared"}}`)
	writeManifest(t, filepath.Join(dir, "h1", "C1.json"), `{"Metadata": {"Id": "C1", "Title": "Legacy"}}`)

	resolver := NewResolver(dir)

	if m := resolver.Resolve("C1", "h1"); m == nil || m.Metadata.Title != "Legacy" {
		t.Errorf("h1 lookup should prefer the version manifest, got %+v", m)
	}
	if m := resolver.Resolve("C1", "h3"); m == nil || m.Metadata.Title != "Shared" {
		t.Errorf("h3 lookup should fall back to the shared manifest, got %+v", m)
	}
}

func TestResolveFillsMissingID(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "C2.json"), `{"Metadata": {"Title": "Anonymous"}}`)

	resolver := NewResolver(dir)
	m := resolver.Resolve("C2", "h3")
	if m == nil || m.Metadata.ID != "C2" {
		t.Errorf("manifest without an Id should inherit the lookup id, got %+v", m)
	}
}

func TestResolveUnknownIsNil(t *testing.T) {
	resolver := NewResolver(t.TempDir())
	if m := resolver.Resolve("nope", "h3"); m != nil {
		t.Errorf("expected nil for an unknown contract, got %+v", m)
	}
	if m := resolver.Resolve("", "h3"); m != nil {
		t.Errorf("expected nil for an empty id, got %+v", m)
	}
}

func TestResolveCachesUntilFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "C3.json")
	writeManifest(t, path, `{"Metadata": {"Id": "C3", "Title": "Before"}}`)

	resolver := NewResolver(dir)
	if m := resolver.Resolve("C3", "h3"); m == nil || m.Metadata.Title != "Before" {
		t.Fatalf("initial resolve failed: %+v", m)
	}

	writeManifest(t, path, `{"Metadata": {"Id": "C3", "Title": "After"}}`)
	if m := resolver.Resolve("C3", "h3"); m.Metadata.Title != "Before" {
		t.Errorf("expected the cached manifest before flush, got %s", m.Metadata.Title)
	}

	resolver.Flush()
	if m := resolver.Resolve("C3", "h3"); m.Metadata.Title != "After" {
		t.Errorf("expected the edited manifest after flush, got %s", m.Metadata.Title)
	}
}
