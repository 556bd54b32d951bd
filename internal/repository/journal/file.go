package journal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// FileRepository appends records to a JSON-lines file.
// Each line is produced and consumed via protojson.
type FileRepository struct {
	// path is the filesystem location of the journal.
	path string
	// mu serializes access to the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository writing to path.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = config.DefaultJournalFilename
	}

	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Append implements Repository.
func (r *FileRepository) Append(_ context.Context, record *drowsiness.EpisodeRecord) error {
	if record == nil {
		return errRecordIsNotSet
	}

	s, err := toStruct(record)
	if err != nil {
		return err
	}

	line, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err = f.Write(append(line, '\n')); err != nil {
		_ = f.Close()

		return fmt.Errorf("write journal: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}

	return nil
}

// List implements Repository. A missing file is an empty journal.
func (r *FileRepository) List(_ context.Context, limit int) ([]*drowsiness.EpisodeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read journal: %w", err)
	}

	var (
		records []*drowsiness.EpisodeRecord
		scanner = bufio.NewScanner(bytes.NewReader(contents))
	)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var s structpb.Struct
		if err = protojson.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", len(records)+1, err)
		}

		record, err := fromStruct(&s)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	return tail(records, limit), nil
}

// Close implements Repository.
func (r *FileRepository) Close() error {
	return nil
}
