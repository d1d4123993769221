package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParsePagesText(t *testing.T) {
	path := writeFile(t, "notes.txt", "alpha beta\ngamma")

	pages, err := ParsePages(path)
	if err != nil {
		t.Fatalf("ParsePages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if pages[0].Number != 1 || pages[0].Text != "alpha beta\ngamma" {
		t.Fatalf("unexpected page %+v", pages[0])
	}
}

func TestParsePagesMarkdown(t *testing.T) {
	path := writeFile(t, "README.MD", "# Title\n\nSome *emphasis* and a [link](http://example.com).\n\n- item one\n- item two\n")

	pages, err := ParsePages(path)
	if err != nil {
		t.Fatalf("ParsePages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	got := pages[0].Text
	for _, want := range []string{"Title", "emphasis", "link", "item one", "item two"} {
		if !strings.Contains(got, want) {
			t.Errorf("text %q missing %q", got, want)
		}
	}
	for _, syntax := range []string{"#", "*", "](", "http://example.com"} {
		if strings.Contains(got, syntax) {
			t.Errorf("text %q still contains markdown %q", got, syntax)
		}
	}
}

func TestParsePagesPPTXSlideOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	slides := []struct{ name, body string }{
		{"ppt/slides/slide10.xml", `<p:sld><a:p><a:r><a:t>tenth</a:t></a:r></a:p></p:sld>`},
		{"ppt/slides/slide2.xml", `<p:sld><a:p><a:r><a:t>second &amp; more</a:t></a:r></a:p></p:sld>`},
		{"ppt/slides/slide1.xml", `<p:sld><a:p><a:r><a:t xml:space="preserve">first</a:t><a:tab/></a:r></a:p></p:sld>`},
		{"ppt/slides/_rels/slide1.xml.rels", `<Relationships/>`},
	}
	for _, s := range slides {
		w, err := zw.Create(s.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(s.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	pages, err := ParsePages(path)
	if err != nil {
		t.Fatalf("ParsePages: %v", err)
	}
	want := []struct {
		num  int32
		text string
	}{{1, "first"}, {2, "second & more"}, {10, "tenth"}}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d: %+v", len(pages), len(want), pages)
	}
	for i, w := range want {
		if pages[i].Number != w.num || pages[i].Text != w.text {
			t.Errorf("page %d = %+v, want {%d %q}", i, pages[i], w.num, w.text)
		}
	}
}

func TestParsePagesUnsupported(t *testing.T) {
	path := writeFile(t, "image.png", "not really")
	if _, err := ParsePages(path); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestParsePagesMissingFile(t *testing.T) {
	if _, err := ParsePages(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractTextFromXML(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p><w:p><w:r><w:tab/><w:t>next</w:t></w:r></w:p></w:body>`
	got := extractTextFromXML(xml, "w:t", "w:p")
	want := "Hello world \nnext"
	if got != want {
		t.Fatalf("extractTextFromXML = %q, want %q", got, want)
	}
}
