package valuelog

import (
	"bytes"
	"testing"

	"github.com/colasst/colasst/internal/compression"
	"github.com/colasst/colasst/internal/vfs"
)

func TestAppendAndRead(t *testing.T) {
	fs := vfs.NewMemFS()
	l, err := Open(fs, "values.log", compression.Snappy)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	values := [][]byte{
		[]byte("short"),
		bytes.Repeat([]byte("x"), 4096),
		[]byte(""),
	}

	offsets := make([]int64, len(values))
	for i, v := range values {
		off, size, err := l.Append(v)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if size == 0 {
			t.Fatal("Append returned zero size")
		}
		offsets[i] = off
	}

	for i, v := range values {
		got, err := l.Read(offsets[i])
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !bytes.Equal(got, v) {
			t.Fatalf("Read(%d) = %q, want %q", offsets[i], got, v)
		}
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	fs := vfs.NewMemFS()
	l, err := Open(fs, "values.log", compression.None)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	off, _, err := l.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := fs.OpenReadWrite("values.log")
	if err != nil {
		t.Fatalf("OpenReadWrite: %v", err)
	}
	if _, err := f.WriteAt([]byte("X"), off+recordHeaderSize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	if _, err := l.Read(off); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestReopenAppendsAfterExistingContent(t *testing.T) {
	fs := vfs.NewMemFS()
	l1, err := Open(fs, "values.log", compression.None)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	off1, _, err := l1.Append([]byte("first"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l1.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(fs, "values.log", compression.None)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	off2, _, err := l2.Append([]byte("second"))
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if off2 <= off1 {
		t.Fatalf("second record offset %d did not land after first %d", off2, off1)
	}

	got1, err := l2.Read(off1)
	if err != nil {
		t.Fatalf("Read first after reopen: %v", err)
	}
	if string(got1) != "first" {
		t.Fatalf("Read(off1) = %q, want %q", got1, "first")
	}
}
