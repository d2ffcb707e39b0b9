package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// writeTimeout bounds a single archive upload.
const writeTimeout = 10 * time.Second

// ArchiveRecord is one raw telemetry body waiting to be archived.
type ArchiveRecord struct {
	Channel       string
	MessageNumber int
	Body          []byte
}

// Key returns the object key the record is stored under.
func (r ArchiveRecord) Key() string {
	return fmt.Sprintf("telemetry/%s/%010d.json", url.PathEscape(r.Channel), r.MessageNumber)
}

// Archiver writes raw telemetry to object storage in the background.
// Records are handed over through a bounded channel so ingestion never
// waits on the object store.
type Archiver struct {
	store   Storage
	records chan ArchiveRecord
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	log     *zap.Logger

	// OnResult, if set, is called after every upload attempt.
	OnResult func(err error)
}

// NewArchiver creates an archiver with a buffer of the given capacity.
func NewArchiver(store Storage, capacity int, log *zap.Logger) *Archiver {
	if capacity <= 0 {
		capacity = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{
		store:   store,
		records: make(chan ArchiveRecord, capacity),
		closed:  make(chan struct{}),
		log:     log,
	}
}

// Enqueue performs a non-blocking hand-over of rec.
// It returns false if the buffer is full or the archiver is stopped.
// The body is copied, callers may reuse their slice.
func (a *Archiver) Enqueue(rec ArchiveRecord) bool {
	select {
	case <-a.closed:
		return false
	default:
	}

	rec.Body = bytes.Clone(rec.Body)
	select {
	case a.records <- rec:
		return true
	default:
		return false
	}
}

// Len returns the number of records waiting to be written.
func (a *Archiver) Len() int {
	return len(a.records)
}

// Start launches the background writer.
func (a *Archiver) Start() {
	a.wg.Add(1)
	go a.loop()
}

// Stop stops accepting records, writes what is buffered and waits for the writer.
// It is safe to call multiple times.
func (a *Archiver) Stop() {
	a.once.Do(func() {
		close(a.closed)
	})
	a.wg.Wait()
}

func (a *Archiver) loop() {
	defer a.wg.Done()

	for {
		select {
		case rec := <-a.records:
			a.write(rec)
		case <-a.closed:
			a.drain()
			return
		}
	}
}

func (a *Archiver) drain() {
	for {
		select {
		case rec := <-a.records:
			a.write(rec)
		default:
			return
		}
	}
}

func (a *Archiver) write(rec ArchiveRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := a.store.Put(ctx, rec.Key(), bytes.NewReader(rec.Body), PutObjectOptions{
		Size:        int64(len(rec.Body)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"channel":        rec.Channel,
			"message-number": fmt.Sprintf("%d", rec.MessageNumber),
		},
	})
	if err != nil {
		a.log.Error("archive write failed",
			zap.String("key", rec.Key()), zap.Error(err))
	}
	if a.OnResult != nil {
		a.OnResult(err)
	}
}

// Ping checks that the object store behind the archiver is reachable.
func (a *Archiver) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}
