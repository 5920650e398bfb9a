package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"strideSyncAPI/internal/types/record"
)

// zoneCheckTimeout bounds the quick existence check against the remote store.
// A check that does not resolve in time is treated as "not found" so callers
// never hang.
const zoneCheckTimeout = 3 * time.Second

// NewFirebaseApp initializes the Firebase app. It first attempts to use
// credentials from the FIREBASE_SERVICE_ACCOUNT_JSON environment variable
// (Base64 encoded). If that's not found, it falls back to a local service
// account key file.
func NewFirebaseApp(ctx context.Context, localFilePath string) (*firebase.App, error) {
	var opt option.ClientOption

	encodedCreds := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FIREBASE_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("Firebase: initializing from FIREBASE_SERVICE_ACCOUNT_JSON environment variable")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FIREBASE_SERVICE_ACCOUNT_JSON environment variable is not set", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Printf("Firebase: initializing from local file: %s", localFilePath)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}

// recordDoc is the Firestore document shape: queryable scalar fields plus the
// opaque JSON blob carrying the full structured value.
type recordDoc struct {
	Kind       string    `firestore:"kind"`
	Date       string    `firestore:"date,omitempty"`
	EntityID   string    `firestore:"entityId,omitempty"`
	MealType   string    `firestore:"mealType,omitempty"`
	ModifiedAt time.Time `firestore:"modifiedAt"`
	Blob       []byte    `firestore:"blob"`
}

// FirestoreService stores one user's records in the Firestore zone
// zones/{userID}, with every record in its records subcollection under its
// stable key.
type FirestoreService struct {
	client *firestore.Client
	userID string
}

func NewFirestoreService(ctx context.Context, app *firebase.App, userID string) (*FirestoreService, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	return &FirestoreService{client: client, userID: userID}, nil
}

func (s *FirestoreService) zone() *firestore.DocumentRef {
	return s.client.Collection("zones").Doc(s.userID)
}

func (s *FirestoreService) records() *firestore.CollectionRef {
	return s.zone().Collection("records")
}

// ZoneExists runs the bounded existence check. Timeouts resolve to false
// rather than an error.
func (s *FirestoreService) ZoneExists(ctx context.Context) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, zoneCheckTimeout)
	defer cancel()

	_, err := s.zone().Get(checkCtx)
	if err == nil {
		return true, nil
	}
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Println("Sync: zone existence check timed out, treating as not found")
		return false, nil
	}
	return false, fmt.Errorf("failed to check zone: %w", err)
}

// EnsureZone creates the user's zone if it does not exist. "Already exists"
// counts as success.
func (s *FirestoreService) EnsureZone(ctx context.Context) error {
	exists, err := s.ZoneExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.zone().Create(ctx, map[string]any{
		"owner":     s.userID,
		"createdAt": firestore.ServerTimestamp,
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("failed to create zone: %w", err)
	}
	log.Printf("Sync: created remote zone for user %s", s.userID)
	return nil
}

// SaveBatch writes one batch of records through a BulkWriter. Individual
// record failures are logged and tolerated; an error is returned only when
// every write in the batch failed.
func (s *FirestoreService) SaveBatch(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make(map[string]*firestore.BulkWriterJob, len(recs))
	for _, rec := range recs {
		doc := recordDoc{
			Kind:       string(rec.Kind),
			Date:       rec.Date,
			EntityID:   rec.EntityID,
			MealType:   rec.MealType,
			ModifiedAt: rec.ModifiedAt,
			Blob:       []byte(rec.Blob),
		}
		job, err := bw.Set(s.records().Doc(rec.Key), doc)
		if err != nil {
			log.Printf("Sync: failed to enqueue record %s: %v", rec.Key, err)
			continue
		}
		jobs[rec.Key] = job
	}
	bw.End()

	failed := 0
	for key, job := range jobs {
		if _, err := job.Results(); err != nil {
			log.Printf("Sync: failed to write record %s: %v", key, err)
			failed++
		}
	}
	if failed == len(recs) {
		return fmt.Errorf("all %d records in batch failed to write", len(recs))
	}
	if failed > 0 {
		log.Printf("Sync: wrote batch with %d of %d records failed", failed, len(recs))
	}
	return nil
}

// Query returns one page of records of the given kind, ordered by key.
// Pass the returned cursor to fetch the next page; an empty cursor means the
// scan is complete.
func (s *FirestoreService) Query(ctx context.Context, kind record.Kind, cursor string, limit int) ([]record.Record, string, error) {
	q := s.records().
		Where("kind", "==", string(kind)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit)
	if cursor != "" {
		q = q.StartAfter(cursor)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []record.Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to query %s records: %w", kind, err)
		}
		out = append(out, s.toRecord(doc))
	}

	next := ""
	if len(out) == limit {
		next = out[len(out)-1].Key
	}
	return out, next, nil
}

func (s *FirestoreService) toRecord(doc *firestore.DocumentSnapshot) record.Record {
	var rd recordDoc
	if err := doc.DataTo(&rd); err != nil {
		// Leave the blob empty: the decoder downstream will skip the record.
		log.Printf("Sync: malformed remote document %s: %v", doc.Ref.ID, err)
	}
	return record.Record{
		Key:        doc.Ref.ID,
		Kind:       record.Kind(rd.Kind),
		Date:       rd.Date,
		EntityID:   rd.EntityID,
		MealType:   rd.MealType,
		ModifiedAt: rd.ModifiedAt,
		Blob:       json.RawMessage(rd.Blob),
	}
}

// Fetch returns the record under the given stable key, or (nil, nil) if it
// does not exist.
func (s *FirestoreService) Fetch(ctx context.Context, key string) (*record.Record, error) {
	doc, err := s.records().Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch record %s: %w", key, err)
	}
	rec := s.toRecord(doc)
	return &rec, nil
}

// Delete removes the record under the given key. Deleting a missing record
// is not an error.
func (s *FirestoreService) Delete(ctx context.Context, key string) error {
	if _, err := s.records().Doc(key).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreService) Close() error {
	return s.client.Close()
}
