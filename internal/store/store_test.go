package store

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(afero.NewMemMapFs(), "docs", "text", nil)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return s
}

func TestSave_And_ListRaw(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.Save("report.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if stored != "report.pdf" {
		t.Errorf("expected report.pdf, got %s", stored)
	}

	names, err := s.ListRaw()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "report.pdf" {
		t.Errorf("expected [report.pdf], got %v", names)
	}
}

func TestSave_CollisionNumbering(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.Save("report.pdf", []byte("v1"))
	second, err := s.Save("report.pdf", []byte("v2"))
	if err != nil {
		t.Fatal(err)
	}
	third, err := s.Save("report.pdf", []byte("v3"))
	if err != nil {
		t.Fatal(err)
	}

	if first != "report.pdf" {
		t.Errorf("first: got %s", first)
	}
	if second != "report (1).pdf" {
		t.Errorf("second: got %s", second)
	}
	if third != "report (2).pdf" {
		t.Errorf("third: got %s", third)
	}

	names, _ := s.ListRaw()
	if len(names) != 3 {
		t.Errorf("expected 3 stored documents, got %v", names)
	}
}

func TestSave_StripsPath(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.Save("../../etc/passwd.pdf", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if stored != "passwd.pdf" {
		t.Errorf("path components should be stripped, got %s", stored)
	}
}

func TestOpenRaw(t *testing.T) {
	s := newTestStore(t)
	s.Save("a.pdf", []byte("hello"))

	f, size, err := s.OpenRaw("a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if size != 5 {
		t.Errorf("expected size 5, got %d", size)
	}
}

func TestOpenRaw_Missing(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.OpenRaw("missing.pdf")
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestRemoveRaw(t *testing.T) {
	s := newTestStore(t)
	s.Save("a.pdf", []byte("x"))

	if err := s.RemoveRaw("a.pdf"); err != nil {
		t.Fatal(err)
	}
	names, _ := s.ListRaw()
	if len(names) != 0 {
		t.Errorf("expected empty raw area, got %v", names)
	}
}

func TestSaveText_And_ListText(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveText(TextUnit{Name: "report.txt", Text: "extracted text"})
	if err != nil {
		t.Fatal(err)
	}

	units, err := s.ListText()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Name != "report.txt" {
		t.Errorf("name: got %s", units[0].Name)
	}
	if units[0].Source != "report.pdf" {
		t.Errorf("source: got %s", units[0].Source)
	}
	if units[0].Text != "extracted text" {
		t.Errorf("text: got %q", units[0].Text)
	}
}

func TestListText_Sorted(t *testing.T) {
	s := newTestStore(t)
	s.SaveText(TextUnit{Name: "b.txt", Text: "b"})
	s.SaveText(TextUnit{Name: "a.txt", Text: "a"})
	s.SaveText(TextUnit{Name: "c.txt", Text: "c"})

	units, _ := s.ListText()
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if units[0].Name != "a.txt" || units[1].Name != "b.txt" || units[2].Name != "c.txt" {
		t.Errorf("not sorted: %s, %s, %s", units[0].Name, units[1].Name, units[2].Name)
	}
}

func TestClearText(t *testing.T) {
	s := newTestStore(t)
	s.SaveText(TextUnit{Name: "a.txt", Text: "a"})
	s.SaveText(TextUnit{Name: "b.txt", Text: "b"})
	s.Save("keep.pdf", []byte("raw"))

	if err := s.ClearText(); err != nil {
		t.Fatal(err)
	}

	units, _ := s.ListText()
	if len(units) != 0 {
		t.Errorf("expected no text units after clear, got %d", len(units))
	}
	// Raw area untouched.
	names, _ := s.ListRaw()
	if len(names) != 1 {
		t.Errorf("raw documents should survive ClearText, got %v", names)
	}
}

func TestTextName(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"report.pdf", "report.txt"},
		{"report (1).pdf", "report (1).txt"},
		{"no-extension", "no-extension.txt"},
	}
	for _, tt := range tests {
		if got := TextName(tt.source); got != tt.want {
			t.Errorf("TextName(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestSourceName_RoundTrip(t *testing.T) {
	if got := SourceName(TextName("thesis.pdf")); got != "thesis.pdf" {
		t.Errorf("round trip: got %q", got)
	}
}
