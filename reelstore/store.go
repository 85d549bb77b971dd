// Package reelstore persists recorded reels and their frames in a local
// bbolt database. The store handle is opened and owned by the caller; the
// recorder service only borrows it.
package reelstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

var (
	bucketReels      = []byte("reels")
	bucketFrames     = []byte("frames")
	bucketFrameIndex = []byte("idx_reel_frames")
)

// Options configure a store handle.
type Options struct {
	// ChunkSize bounds the per-transaction frame count for bulk writes.
	// Values below one fall back to the schema default.
	ChunkSize int
	Logger    pslog.Logger
}

// Store is a reel database handle. Safe for concurrent use.
type Store struct {
	db        *bolt.DB
	path      string
	chunkSize int
	log       pslog.Logger
}

// reelRecord is the persisted reel envelope, stored without frame payloads.
// Frames live in their own bucket so listings never deserialize image data.
type reelRecord struct {
	ID            schema.ReelID       `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       *time.Time          `json:"end_time,omitempty"`
	Settings      schema.ReelSettings `json:"settings"`
	Metadata      schema.ReelMetadata `json:"metadata"`
	FrameCount    int                 `json:"frame_count"`
	EstimatedSize int64               `json:"estimated_size"`
	Thumbnail     []byte              `json:"thumbnail,omitempty"`
}

// Info reports store usage counters.
type Info struct {
	ReelCount  int
	FrameCount int
	TotalBytes int64
	QuotaBytes int64
	UsedBytes  int64
}

// Open opens (or creates) the reel database at path.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open reel store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketReels, bucketFrames, bucketFrameIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init reel store: %w", err)
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = schema.DefaultSaveChunkSize
	}
	log := opts.Logger
	if log != nil {
		log = log.With("store", path)
	}
	return &Store{db: db, path: path, chunkSize: chunk, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveReel writes a reel envelope and all its frames in one transaction,
// replacing any previous version of the same id. Either everything commits
// or nothing does. Reels with zero frames are rejected; callers discard
// empty recordings instead of persisting them. Large recordings that must
// bound transaction size use SaveFrames instead.
func (s *Store) SaveReel(ctx context.Context, reel schema.Reel) error {
	if reel.ID == "" {
		return fmt.Errorf("%w: missing reel id", schema.ErrInvalidRequest)
	}
	if len(reel.Frames) == 0 {
		return schema.ErrNoFrames
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := recordFromReel(reel)
	envelope, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal reel %s: %w", reel.ID, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := deleteReelTx(tx, reel.ID); err != nil && !errors.Is(err, schema.ErrReelNotFound) {
			return err
		}
		if err := tx.Bucket(bucketReels).Put([]byte(reel.ID), envelope); err != nil {
			return err
		}
		return putFramesTx(tx, reel.Frames)
	})
	if err != nil {
		return fmt.Errorf("save reel %s: %w", reel.ID, err)
	}
	if s.log != nil {
		s.log.Debug("reel saved", "reel", reel.ID, "frames", len(reel.Frames))
	}
	return nil
}

// SaveFrames bulk-inserts frames in chunks of the configured size, one
// transaction per chunk. The call is atomic per chunk, not as a whole: a
// failure in chunk k leaves chunks before it committed. The trade-off bounds
// transaction size for large recordings; re-running the save overwrites the
// committed chunks. Frames must carry their reel id and order.
func (s *Store) SaveFrames(ctx context.Context, frames []schema.Frame) error {
	for start := 0; start < len(frames); start += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + s.chunkSize
		if end > len(frames) {
			end = len(frames)
		}
		chunk := frames[start:end]
		err := s.db.Update(func(tx *bolt.Tx) error {
			return putFramesTx(tx, chunk)
		})
		if err != nil {
			return fmt.Errorf("save frames %d..%d: %w", start, end-1, err)
		}
	}
	if s.log != nil {
		s.log.Trace("frames saved", "count", len(frames), "chunk_size", s.chunkSize)
	}
	return nil
}

func putFramesTx(tx *bolt.Tx, frames []schema.Frame) error {
	bucket := tx.Bucket(bucketFrames)
	index := tx.Bucket(bucketFrameIndex)
	for _, frame := range frames {
		data, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("marshal frame %s: %w", frame.ID, err)
		}
		if err := bucket.Put([]byte(frame.ID), data); err != nil {
			return err
		}
		if err := index.Put(frameIndexKey(frame.ReelID, frame.Order), []byte(frame.ID)); err != nil {
			return err
		}
	}
	return nil
}

// LoadReel loads one reel with its frames in order.
func (s *Store) LoadReel(ctx context.Context, id schema.ReelID) (schema.Reel, error) {
	if err := ctx.Err(); err != nil {
		return schema.Reel{}, err
	}
	var reel schema.Reel
	err := s.db.View(func(tx *bolt.Tx) error {
		record, err := loadRecordTx(tx, id)
		if err != nil {
			return err
		}
		reel = reelFromRecord(record)
		frames := tx.Bucket(bucketFrames)
		cursor := tx.Bucket(bucketFrameIndex).Cursor()
		prefix := framePrefix(id)
		for k, frameID := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, frameID = cursor.Next() {
			data := frames.Get(frameID)
			if data == nil {
				return fmt.Errorf("reel %s frame %s missing", id, frameID)
			}
			var frame schema.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				return fmt.Errorf("unmarshal frame %s: %w", frameID, err)
			}
			reel.Frames = append(reel.Frames, frame)
		}
		return nil
	})
	if err != nil {
		return schema.Reel{}, err
	}
	return reel, nil
}

// LoadAllReels lists stored reel summaries, most recent start time first.
func (s *Store) LoadAllReels(ctx context.Context) ([]schema.ReelSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var summaries []schema.ReelSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReels).ForEach(func(_, v []byte) error {
			var record reelRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			summaries = append(summaries, summaryFromRecord(record))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

// UpdateReel updates the mutable reel fields. Nil pointers leave the
// corresponding field untouched.
func (s *Store) UpdateReel(ctx context.Context, id schema.ReelID, title, description *string) (schema.ReelSummary, error) {
	if err := ctx.Err(); err != nil {
		return schema.ReelSummary{}, err
	}
	var summary schema.ReelSummary
	err := s.db.Update(func(tx *bolt.Tx) error {
		record, err := loadRecordTx(tx, id)
		if err != nil {
			return err
		}
		if title != nil {
			record.Title = *title
		}
		if description != nil {
			record.Description = *description
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketReels).Put([]byte(id), data); err != nil {
			return err
		}
		summary = summaryFromRecord(record)
		return nil
	})
	if err != nil {
		return schema.ReelSummary{}, err
	}
	if s.log != nil {
		s.log.Debug("reel updated", "reel", id)
	}
	return summary, nil
}

// DeleteReel removes a reel, its frames, and its index entries.
func (s *Store) DeleteReel(ctx context.Context, id schema.ReelID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return deleteReelTx(tx, id)
	})
	if err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debug("reel deleted", "reel", id)
	}
	return nil
}

// CleanupOldReels evicts the oldest reels by start time, keeping at most
// keep reels. A keep of zero deletes every stored reel; callers that want
// eviction disabled skip the call instead.
func (s *Store) CleanupOldReels(ctx context.Context, keep int) ([]schema.ReelID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keep < 0 {
		return nil, fmt.Errorf("%w: keep count must not be negative", schema.ErrInvalidRequest)
	}
	summaries, err := s.LoadAllReels(ctx)
	if err != nil {
		return nil, err
	}
	if len(summaries) <= keep {
		return nil, nil
	}
	victims := summaries[keep:]
	deleted := make([]schema.ReelID, 0, len(victims))
	err = s.db.Update(func(tx *bolt.Tx) error {
		for _, victim := range victims {
			if err := deleteReelTx(tx, victim.ID); err != nil {
				if errors.Is(err, schema.ErrReelNotFound) {
					continue
				}
				return err
			}
			deleted = append(deleted, victim.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.log != nil && len(deleted) > 0 {
		s.log.Info("old reels evicted", "deleted", len(deleted), "keep", keep)
	}
	return deleted, nil
}

// StorageInfo reports usage counters for the store.
func (s *Store) StorageInfo(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	var info Info
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketReels).ForEach(func(_, v []byte) error {
			var record reelRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			info.ReelCount++
			info.FrameCount += record.FrameCount
			info.TotalBytes += record.EstimatedSize
			return nil
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	if stat, err := os.Stat(s.path); err == nil {
		info.UsedBytes = stat.Size()
	}
	if total, err := fsQuota(s.path); err == nil {
		info.QuotaBytes = total
	}
	return info, nil
}

func deleteReelTx(tx *bolt.Tx, id schema.ReelID) error {
	reels := tx.Bucket(bucketReels)
	if reels.Get([]byte(id)) == nil {
		return schema.ErrReelNotFound
	}
	if err := reels.Delete([]byte(id)); err != nil {
		return err
	}
	frames := tx.Bucket(bucketFrames)
	index := tx.Bucket(bucketFrameIndex)
	cursor := index.Cursor()
	prefix := framePrefix(id)
	var keys [][]byte
	for k, frameID := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, frameID = cursor.Next() {
		if err := frames.Delete(frameID); err != nil {
			return err
		}
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := index.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func loadRecordTx(tx *bolt.Tx, id schema.ReelID) (reelRecord, error) {
	data := tx.Bucket(bucketReels).Get([]byte(id))
	if data == nil {
		return reelRecord{}, schema.ErrReelNotFound
	}
	var record reelRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return reelRecord{}, fmt.Errorf("unmarshal reel %s: %w", id, err)
	}
	return record, nil
}

// frameIndexKey orders frames within a reel: reel id, a zero separator, and
// the big-endian order index so cursor iteration yields playback order.
func frameIndexKey(id schema.ReelID, order int) []byte {
	key := make([]byte, 0, len(id)+9)
	key = append(key, id...)
	key = append(key, 0)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(order))
	return append(key, buf[:]...)
}

func framePrefix(id schema.ReelID) []byte {
	prefix := make([]byte, 0, len(id)+1)
	prefix = append(prefix, id...)
	return append(prefix, 0)
}

func recordFromReel(reel schema.Reel) reelRecord {
	var size int64
	for _, frame := range reel.Frames {
		size += int64(len(frame.Image))
	}
	record := reelRecord{
		ID:            reel.ID,
		Title:         reel.Title,
		Description:   reel.Description,
		StartTime:     reel.StartTime,
		EndTime:       reel.EndTime,
		Settings:      reel.Settings,
		Metadata:      reel.Metadata,
		FrameCount:    len(reel.Frames),
		EstimatedSize: size,
	}
	if thumb, err := makeThumbnail(reel.Frames[0].Image); err == nil {
		record.Thumbnail = thumb
	}
	return record
}

func reelFromRecord(record reelRecord) schema.Reel {
	return schema.Reel{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		StartTime:   record.StartTime,
		EndTime:     record.EndTime,
		Frames:      make([]schema.Frame, 0, record.FrameCount),
		Settings:    record.Settings,
		Metadata:    record.Metadata,
	}
}

func summaryFromRecord(record reelRecord) schema.ReelSummary {
	return schema.ReelSummary{
		ID:            record.ID,
		Title:         record.Title,
		Description:   record.Description,
		StartTime:     record.StartTime,
		EndTime:       record.EndTime,
		FrameCount:    record.FrameCount,
		EstimatedSize: record.EstimatedSize,
		Thumbnail:     record.Thumbnail,
	}
}
