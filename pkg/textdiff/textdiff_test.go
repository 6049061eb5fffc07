package textdiff

import (
	"bytes"
	"context"
	"io/fs"
	"testing"

	"github.com/pkg/errors"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

type stubView struct {
	data map[string][]byte
}

func (v *stubView) Stat(_ context.Context, path string) (*syncfs.Stat, error) {
	data, ok := v.data[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return &syncfs.Stat{Kind: syncfs.EntryFile, Size: int64(len(data))}, nil
}

func (v *stubView) ReadDir(context.Context, string) ([]syncfs.DirEntry, error) { return nil, nil }

func (v *stubView) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, ok := v.data[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (v *stubView) WriteFile(context.Context, string, []byte, fs.FileMode) error { return nil }
func (v *stubView) Mkdir(context.Context, string) error                         { return nil }
func (v *stubView) Remove(context.Context, string) error                       { return nil }

func TestFileUnifiedDiff(t *testing.T) {
	left := &stubView{data: map[string][]byte{"a.txt": []byte("one\ntwo\nthree\n")}}
	right := &stubView{data: map[string][]byte{"a.txt": []byte("one\nTWO\nthree\n")}}

	result, err := File(context.Background(), left, right, "a.txt")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if result.Identical {
		t.Fatal("expected a diff, got Identical")
	}
	if result.Unified == "" {
		t.Fatal("expected non-empty unified diff text")
	}
}

func TestFileIdentical(t *testing.T) {
	left := &stubView{data: map[string][]byte{"a.txt": []byte("same\n")}}
	right := &stubView{data: map[string][]byte{"a.txt": []byte("same\n")}}

	result, err := File(context.Background(), left, right, "a.txt")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if !result.Identical {
		t.Fatal("expected Identical result for byte-equal content")
	}
}

func TestFileRejectsOversizedSource(t *testing.T) {
	big := bytes.Repeat([]byte("a"), MaxSourceSize+1)
	left := &stubView{data: map[string][]byte{"big.txt": big}}
	right := &stubView{data: map[string][]byte{"big.txt": []byte("small\n")}}

	_, err := File(context.Background(), left, right, "big.txt")
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("expected ErrSourceTooLarge, got %v", err)
	}
}

func TestFileRejectsBinaryContent(t *testing.T) {
	binary := []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00, 0x10}
	left := &stubView{data: map[string][]byte{"bin.dat": binary}}
	right := &stubView{data: map[string][]byte{"bin.dat": []byte("text\n")}}

	_, err := File(context.Background(), left, right, "bin.dat")
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestFileRejectsBinaryExtensionRegardlessOfContent(t *testing.T) {
	// Text-looking bytes behind a known-binary extension must still be
	// rejected by the filename check, before any content sniffing happens.
	left := &stubView{data: map[string][]byte{"photo.png": []byte("not actually binary\n")}}
	right := &stubView{data: map[string][]byte{"photo.png": []byte("also text\n")}}

	_, err := File(context.Background(), left, right, "photo.png")
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding from the extension check, got %v", err)
	}
}
