// ABOUTME: Ingestion manifest recording input and output hashes per stage
// ABOUTME: Lets stages skip unchanged work and detect tampered artifacts
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrArtifactMismatch means an artifact on disk differs from what the manifest recorded
var ErrArtifactMismatch = errors.New("artifact does not match manifest")

// ManifestFile is the manifest's name inside the work dir
const ManifestFile = "manifest.json"

// StageRecord is what a completed stage leaves behind
type StageRecord struct {
	InputHash   string            `json:"input_hash"`
	Outputs     map[string]string `json:"outputs"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Manifest tracks every completed stage in a work dir
type Manifest struct {
	Stages map[string]StageRecord `json:"stages"`

	dir string
}

// LoadManifest reads dir/manifest.json; a missing file yields an empty manifest
func LoadManifest(dir string) (*Manifest, error) {
	m := &Manifest{Stages: map[string]StageRecord{}, dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Stages == nil {
		m.Stages = map[string]StageRecord{}
	}
	return m, nil
}

// Save writes the manifest atomically
func (m *Manifest) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(m.dir, ManifestFile), data)
}

// UpToDate reports whether stage already ran on inputHash and its outputs are intact
func (m *Manifest) UpToDate(stage, inputHash string) bool {
	rec, ok := m.Stages[stage]
	if !ok || rec.InputHash != inputHash {
		return false
	}
	for name, want := range rec.Outputs {
		got, err := HashFile(filepath.Join(m.dir, name))
		if err != nil || got != want {
			return false
		}
	}
	return true
}

// Record stores the outcome of stage, hashing each output file
func (m *Manifest) Record(stage, inputHash string, outputs ...string) error {
	rec := StageRecord{InputHash: inputHash, Outputs: map[string]string{}, CompletedAt: time.Now().UTC()}
	for _, name := range outputs {
		h, err := HashFile(filepath.Join(m.dir, name))
		if err != nil {
			return err
		}
		rec.Outputs[name] = h
	}
	m.Stages[stage] = rec
	return m.Save()
}

// Verify checks that artifact name still has the hash recorded by the stage
// that produced it, and returns that hash
func (m *Manifest) Verify(name string) (string, error) {
	var (
		want  string
		found bool
	)
	for _, rec := range m.Stages {
		if h, ok := rec.Outputs[name]; ok {
			want, found = h, true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("%w: %s was never produced", ErrArtifactMismatch, name)
	}
	got, err := HashFile(filepath.Join(m.dir, name))
	if err != nil {
		return "", err
	}
	if got != want {
		return "", fmt.Errorf("%w: %s has hash %s, manifest has %s", ErrArtifactMismatch, name, short(got), short(want))
	}
	return got, nil
}

// HashFile returns the hex sha256 of a file's contents
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// combineHashes fingerprints several inputs, independent of map order
func combineHashes(parts map[string]string) string {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, parts[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

func readJSONFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
