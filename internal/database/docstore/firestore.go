package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"plant-monitor-service/internal/config"
)

// FirestoreStore is the Store backed by a Firebase project's Firestore database.
type FirestoreStore struct {
	app    *firebase.App
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, cfg config.FirebaseConfig) (*FirestoreStore, error) {
	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: cfg.ProjectID,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	slog.Info("Connected to Firestore", "project_id", cfg.ProjectID)
	return &FirestoreStore{app: app, client: client}, nil
}

// App exposes the Firebase app so messaging can share the credentials.
func (f *FirestoreStore) App() *firebase.App {
	return f.app
}

func (f *FirestoreStore) Get(ctx context.Context, path string) (Document, error) {
	snap, err := f.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{Path: path}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return fromSnapshot(path, snap), nil
}

func (f *FirestoreStore) Set(ctx context.Context, path string, data map[string]any) error {
	// No merge option: the stored document is replaced as a whole.
	if _, err := f.client.Doc(path).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to write document %s: %w", path, err)
	}
	return nil
}

func (f *FirestoreStore) Subscribe(ctx context.Context, path string, fn func(Event)) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	it := f.client.Doc(path).Snapshots(subCtx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			snap, err := it.Next()
			if err != nil {
				if subCtx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				slog.Error("firestore subscription failed", "path", path, "error", err)
				fn(Event{Document: Document{Path: path}, Err: fmt.Errorf("subscription to %s failed: %w", path, err)})
				return
			}
			fn(Event{Document: fromSnapshot(path, snap)})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
			wg.Wait()
			slog.Info("firestore subscription released", "path", path)
		})
	}, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func fromSnapshot(path string, snap *firestore.DocumentSnapshot) Document {
	if snap == nil || !snap.Exists() {
		return Document{Path: path}
	}
	return Document{
		Path:       path,
		Data:       snap.Data(),
		Exists:     true,
		UpdateTime: snap.UpdateTime,
	}
}
