package settings

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "announced/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.settings.snapshot.json (periodic snapshot)
//   - <prefix>.settings.journal.jsonl (append-only journal)
//
// The journal is replayed over the snapshot at open and periodically
// compacted back into it.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File
	values       map[string]string // "<ns>\x00<key>" -> value

	writes int
}

type journalRecord struct {
	NS    string `json:"ns"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

const compactEvery = 200

func mapKey(namespace, key string) string { return namespace + "\x00" + key }

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("settings.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".settings.snapshot.json"
	journalPath := prefix + ".settings.journal.jsonl"

	values := map[string]string{}
	_ = loadSnapshot(snapPath, values)
	_ = replayJournal(journalPath, values)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		values:       values,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	// Final compact keeps restart replay cheap. Best-effort.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("settings compact on close failed", logx.Err(err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) Get(ctx context.Context, namespace, key, def string) string {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[mapKey(namespace, key)]
	if !ok {
		return def
	}
	return v
}

func (s *fileStore) Set(ctx context.Context, namespace, key, value string) error {
	_ = ctx
	if strings.TrimSpace(key) == "" {
		return errors.New("settings: empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("settings journal closed")
	}
	s.values[mapKey(namespace, key)] = value

	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(journalRecord{NS: namespace, Key: key, Value: value}); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("settings compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.values); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal; everything is in the snapshot now.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadSnapshot(path string, into map[string]string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &into)
}

func replayJournal(path string, into map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec journalRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// Torn last line after a crash; ignore.
			continue
		}
		into[mapKey(rec.NS, rec.Key)] = rec.Value
	}
	return sc.Err()
}
