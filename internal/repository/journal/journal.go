package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// Repository defines persistence operations for episode records.
type Repository interface {
	// Append stores one record.
	Append(ctx context.Context, record *drowsiness.EpisodeRecord) error
	// List returns up to limit most recent records, oldest first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*drowsiness.EpisodeRecord, error)
	// Close releases the underlying storage.
	Close() error
}

var (
	// errRecordIsNotSet is returned when a nil record is appended.
	errRecordIsNotSet = errors.New("episode record is not set")
	// errBadRecord is returned when a stored record cannot be decoded.
	errBadRecord = errors.New("malformed episode record")
)

// Open returns the repository selected by cfg.
func Open(ctx context.Context, cfg config.JournalConfig) (Repository, error) {
	switch cfg.Driver {
	case config.JournalFile, "":
		return NewFileRepository(cfg.DSN), nil
	case config.JournalSQLite:
		return NewSQLiteRepository(ctx, cfg.DSN)
	case config.JournalNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.Driver)
	}
}

// Discard drops every record.
type Discard struct{}

// Append implements Repository.
func (Discard) Append(context.Context, *drowsiness.EpisodeRecord) error { return nil }

// List implements Repository.
func (Discard) List(context.Context, int) ([]*drowsiness.EpisodeRecord, error) { return nil, nil }

// Close implements Repository.
func (Discard) Close() error { return nil }

// toStruct converts a record into a protobuf Struct.
func toStruct(record *drowsiness.EpisodeRecord) (*structpb.Struct, error) {
	fields := map[string]any{
		"episode_id":       record.EpisodeID,
		"start_time":       record.StartTime.UTC().Format(time.RFC3339Nano),
		"end_time":         record.EndTime.UTC().Format(time.RFC3339Nano),
		"duration":         record.Duration.String(),
		"alert_fired":      record.AlertFired,
		"escalation_fired": record.EscalationFired,
	}

	if record.Actor != nil {
		fields["hostname"] = record.Actor.Hostname
		fields["username"] = record.Actor.Username
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	return s, nil
}

// fromStruct converts a protobuf Struct back into a record.
func fromStruct(s *structpb.Struct) (*drowsiness.EpisodeRecord, error) {
	fields := s.GetFields()

	start, err := time.Parse(time.RFC3339Nano, fields["start_time"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %w", errBadRecord, err)
	}

	end, err := time.Parse(time.RFC3339Nano, fields["end_time"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: end_time: %w", errBadRecord, err)
	}

	duration, err := time.ParseDuration(fields["duration"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: duration: %w", errBadRecord, err)
	}

	record := &drowsiness.EpisodeRecord{
		EpisodeID:       uint64(fields["episode_id"].GetNumberValue()),
		StartTime:       start,
		EndTime:         end,
		Duration:        duration,
		AlertFired:      fields["alert_fired"].GetBoolValue(),
		EscalationFired: fields["escalation_fired"].GetBoolValue(),
	}

	if host, ok := fields["hostname"]; ok {
		record.Actor = &drowsiness.Actor{
			Hostname: host.GetStringValue(),
			Username: fields["username"].GetStringValue(),
		}
	}

	return record, nil
}

// tail returns the last limit elements of records.
func tail(records []*drowsiness.EpisodeRecord, limit int) []*drowsiness.EpisodeRecord {
	if limit <= 0 || limit >= len(records) {
		return records
	}

	return records[len(records)-limit:]
}
