package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Bucket names.
var (
	bucketArtifacts   = []byte("artifacts")
	bucketTargetIndex = []byte("target_index")
)

// BoltArtifactStore persists artifacts in a local bbolt database.
// Artifacts are keyed by run id; a secondary index orders artifacts per
// target reference by start time so the latest lookup is a cursor seek.
type BoltArtifactStore struct {
	db     *bolt.DB
	logger *zap.Logger
}

// NewBoltArtifactStore opens or creates the database at path.
func NewBoltArtifactStore(path string, logger *zap.Logger) (*BoltArtifactStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open artifact db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketArtifacts, bucketTargetIndex}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize artifact buckets: %w", err)
	}

	return &BoltArtifactStore{db: db, logger: logger}, nil
}

// Save writes the artifact and its target index entry in one
// transaction. Either both land or neither does.
func (s *BoltArtifactStore) Save(ctx context.Context, artifact *Artifact) (string, error) {
	if artifact.RunID == "" {
		return "", fmt.Errorf("artifact has no run id")
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketArtifacts).Put([]byte(artifact.RunID), data); err != nil {
			return err
		}
		key := targetIndexKey(artifact.TargetReference, artifact.StartedAt, artifact.RunID)
		return tx.Bucket(bucketTargetIndex).Put(key, []byte(artifact.RunID))
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("artifact saved",
		zap.String("artifact_id", artifact.RunID),
		zap.String("target_reference", artifact.TargetReference))
	return artifact.RunID, nil
}

// Load retrieves an artifact by id.
func (s *BoltArtifactStore) Load(ctx context.Context, artifactID string) (*Artifact, error) {
	var artifact Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketArtifacts).Get([]byte(artifactID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &artifact)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// LatestForTarget returns the artifact with the most recent start time
// for the target reference.
func (s *BoltArtifactStore) LatestForTarget(ctx context.Context, targetRef string) (*Artifact, error) {
	var runID string
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := targetIndexPrefix(targetRef)
		c := tx.Bucket(bucketTargetIndex).Cursor()

		// Seek just past the prefix range, then step back to the last
		// entry inside it. Index keys sort by start time, so the last
		// entry is the newest run.
		upper := append(append([]byte(nil), prefix...), 0xff)
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		if k == nil || !bytes.HasPrefix(k, prefix) {
			return ErrNotFound
		}
		runID = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, runID)
}

// Close closes the database.
func (s *BoltArtifactStore) Close() error {
	return s.db.Close()
}

// targetIndexKey builds an index key that sorts lexicographically by
// target reference, then start time, then run id. The NUL separator
// keeps one target's range from bleeding into a longer reference that
// shares its prefix.
func targetIndexKey(targetRef string, startedAt time.Time, runID string) []byte {
	key := targetIndexPrefix(targetRef)
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(startedAt.UnixNano()))
	key = append(key, ts...)
	key = append(key, []byte(runID)...)
	return key
}

func targetIndexPrefix(targetRef string) []byte {
	return append([]byte(targetRef), 0x00)
}
