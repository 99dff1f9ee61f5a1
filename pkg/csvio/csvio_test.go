package csvio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadSkipsBOMAndRaggedRows(t *testing.T) {
	in := "\xEF\xBB\xBFtitle, url \n\"A, Inc\",http://a.example/\nshort\n"
	tbl, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Header) != 2 || tbl.Header[0] != "title" || tbl.Header[1] != "url" {
		t.Fatalf("header = %q", tbl.Header)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0]["title"] != "A, Inc" || tbl.Rows[0].Get("url") != "http://a.example/" {
		t.Fatalf("row 0 = %v", tbl.Rows[0])
	}
	if tbl.Rows[1].Get("url") != "" {
		t.Fatalf("short row should have empty url, got %q", tbl.Rows[1]["url"])
	}
}

func TestReadEmpty(t *testing.T) {
	tbl, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Header) != 0 || len(tbl.Rows) != 0 {
		t.Fatalf("expected empty table, got %+v", tbl)
	}
}

func TestWriterFillsMissingColumns(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(Row{"a": "1", "c": "x,y", "zzz": "ignored"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := "a,b,c\n1,,\"x,y\"\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteFileCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.csv")
	in := &Table{Header: []string{"url"}, Rows: []Row{{"url": "http://a.example/"}}}
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0]["url"] != "http://a.example/" {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestUnionHeader(t *testing.T) {
	got := UnionHeader([]string{"title", "url"}, []string{"url", "notes", "title", "x"})
	want := []string{"title", "url", "notes", "x"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("UnionHeader = %v, want %v", got, want)
	}
}

func TestRowClone(t *testing.T) {
	r := Row{"a": "1"}
	c := r.Clone()
	c["a"] = "2"
	if r["a"] != "1" {
		t.Fatalf("Clone shares storage with the original")
	}
}
