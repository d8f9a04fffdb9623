package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	entries := []Entry{
		{Tick: 1, DurationMs: 2.5, Players: 1, Bodies: 1000},
		{Tick: 2, DurationMs: 180.0, Players: 1, Bodies: 1000, Slow: true},
		{Tick: 3, DurationMs: 3.1, Players: 2, Bodies: 2000},
	}
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			t.Fatalf("write entry %d: %v", e.Tick, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "journal-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("journal files: %v, err %v", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Fatalf("entry %d: got %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestNilWriterIsNoOp(t *testing.T) {
	var w *Writer
	if err := w.Write(Entry{Tick: 1}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
