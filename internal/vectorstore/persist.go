package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/vector"
)

const (
	// IndexFileName holds the encoded vectors.
	IndexFileName = "document.index"
	// MetadataFileName holds the chunk list.
	MetadataFileName = "document.metadata"

	metadataVersion = 1
	tmpPattern      = ".*.tmp"
)

var errNoState = errors.New("no persisted state")

type metadataFile struct {
	Version int     `json:"version"`
	Count   int     `json:"count"`
	Chunks  []Chunk `json:"chunks"`
}

// persist writes both artifacts to temp files, fsyncs them, then renames them into
// place (index first) and fsyncs the directory. If any step before the first rename
// fails, the previous files are untouched.
func persist(dir string, idx vector.Index, chunks []Chunk) error {
	idxTmp, err := writeTemp(dir, IndexFileName, idx.Encode)
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	metaTmp, err := writeTemp(dir, MetadataFileName, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(metadataFile{Version: metadataVersion, Count: len(chunks), Chunks: chunks})
	})
	if err != nil {
		_ = os.Remove(idxTmp)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(idxTmp, filepath.Join(dir, IndexFileName)); err != nil {
		_ = os.Remove(idxTmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("commit index: %w", err)
	}
	if err := os.Rename(metaTmp, filepath.Join(dir, MetadataFileName)); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("commit metadata: %w", err)
	}
	return syncDir(dir)
}

func writeTemp(dir, name string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, name+tmpPattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}

// load decodes both artifacts into idx and returns the chunks. It returns errNoState
// when neither file exists, and an error when only one exists or they disagree.
func load(dir string, idx vector.Index) ([]Chunk, error) {
	removeStaleTemps(dir)

	idxPath := filepath.Join(dir, IndexFileName)
	metaPath := filepath.Join(dir, MetadataFileName)
	idxExists, metaExists := fileExists(idxPath), fileExists(metaPath)
	switch {
	case !idxExists && !metaExists:
		return nil, errNoState
	case !idxExists:
		return nil, fmt.Errorf("%s present without %s", MetadataFileName, IndexFileName)
	case !metaExists:
		return nil, fmt.Errorf("%s present without %s", IndexFileName, MetadataFileName)
	}

	meta, err := readMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(idxPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	if err := idx.Decode(f); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if idx.Size() != meta.Count {
		return nil, fmt.Errorf("index has %d vectors but metadata has %d chunks", idx.Size(), meta.Count)
	}
	return meta.Chunks, nil
}

func readMetadata(path string) (*metadataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta metadataFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if meta.Version != metadataVersion {
		return nil, fmt.Errorf("unsupported metadata version %d", meta.Version)
	}
	if meta.Count != len(meta.Chunks) {
		return nil, fmt.Errorf("metadata count %d but %d chunks", meta.Count, len(meta.Chunks))
	}
	for i, c := range meta.Chunks {
		if c.Slot != i {
			return nil, fmt.Errorf("metadata chunk %d has slot %d", i, c.Slot)
		}
	}
	return &meta, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeStaleTemps(dir string) {
	for _, name := range []string{IndexFileName, MetadataFileName} {
		matches, _ := filepath.Glob(filepath.Join(dir, name+tmpPattern))
		for _, m := range matches {
			_ = os.Remove(m)
		}
	}
}
