package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/metadb"
	"archivecore.io/core/internal/obs"
	"archivecore.io/core/internal/storage"
)

// Artefacts are the three files an approved page contributes (§4.3).
type Artefacts struct {
	Image       []byte
	ImageType   string
	JSONSidecar []byte
	OCRSidecar  []byte
}

// Indexer is the metadata-index slice of metadb.DB the organiser
// needs, narrowed to an interface so tests can inject a fake (the
// same dependency-injection boundary the storage backends use).
type Indexer interface {
	UpsertObject(o domain.StoredObject) error
	Search(q metadb.SearchQuery) ([]metadb.SearchResult, error)
}

// Organiser places page artefacts under their canonical keys and
// keeps the full-text/structured index current.
type Organiser struct {
	backend storage.Backend
	db      Indexer
	logger  *obs.ContextLogger

	// shardLocks serialises writers per (owner/year/doc_type/batch_id)
	// directory, per §4.3 Concurrency.
	mu         sync.Mutex
	shardLocks map[string]*sync.Mutex

	// dirty tracks pages whose artefacts persisted but whose index
	// entry failed, per §4.3 Failure semantics; a background worker
	// drains it.
	dirtyMu sync.RWMutex
	dirty   map[string]domain.Page
}

// New builds an Organiser over backend and db.
func New(backend storage.Backend, db Indexer, logger *obs.ContextLogger) *Organiser {
	return &Organiser{
		backend:    backend,
		db:         db,
		logger:     logger,
		shardLocks: make(map[string]*sync.Mutex),
		dirty:      make(map[string]domain.Page),
	}
}

var _ Indexer = (*metadb.DB)(nil)

func (o *Organiser) shardLock(key domain.BatchKey) *sync.Mutex {
	shard := BatchPrefix(key)
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.shardLocks[shard]
	if !ok {
		l = &sync.Mutex{}
		o.shardLocks[shard] = l
	}
	return l
}

// Store persists a page's artefacts under their canonical keys and
// indexes the result. Artefact persistence is strongly consistent; if
// the index update fails afterward, the page is marked dirty and a
// background reindex is scheduled, but Store still returns success
// (§4.3 Failure semantics).
func (o *Organiser) Store(ctx context.Context, page domain.Page, art Artefacts) (domain.Page, error) {
	key := domain.BatchKey{Owner: page.Owner, Year: page.Year, DocType: page.DocType, BatchID: page.BatchID}
	lock := o.shardLock(key)
	lock.Lock()
	defer lock.Unlock()

	imageExt := "bin"
	switch art.ImageType {
	case "image/png":
		imageExt = "png"
	case "image/jpeg":
		imageExt = "jpg"
	case "application/pdf":
		imageExt = "pdf"
	case "image/tiff":
		imageExt = "tif"
	}

	refs := domain.StorageRefs{
		ImageKey: CanonicalKey(page.Owner, page.Year, page.DocType, page.BatchID, page.PageID, imageExt),
		JSONKey:  CanonicalKey(page.Owner, page.Year, page.DocType, page.BatchID, page.PageID, "json"),
		OCRKey:   CanonicalKey(page.Owner, page.Year, page.DocType, page.BatchID, page.PageID, "ocr.txt"),
	}

	if _, err := o.backend.Put(ctx, refs.ImageKey, bytes.NewReader(art.Image), art.ImageType, nil, ""); err != nil {
		return domain.Page{}, fmt.Errorf("store image artefact: %w", err)
	}
	if _, err := o.backend.Put(ctx, refs.JSONKey, bytes.NewReader(art.JSONSidecar), "application/json", nil, ""); err != nil {
		return domain.Page{}, fmt.Errorf("store json artefact: %w", err)
	}
	if _, err := o.backend.Put(ctx, refs.OCRKey, bytes.NewReader(art.OCRSidecar), "text/plain", nil, ""); err != nil {
		return domain.Page{}, fmt.Errorf("store ocr artefact: %w", err)
	}

	page.Refs = refs
	page.UpdatedAt = time.Now()

	if err := o.index(page, art); err != nil {
		o.markDirty(page)
		o.logger.WithError(err).WithField("page_id", page.PageID).Warn("index update failed, marked dirty for background reindex")
	}

	return page, nil
}

// index upserts the page's object-metadata row, whose generated
// search_vector column backs the free-text index and whose qc_status
// column backs the structured filter (§4.3).
func (o *Organiser) index(page domain.Page, art Artefacts) error {
	meta := map[string]string{
		"page_id":  page.PageID,
		"owner":    page.Owner,
		"doc_type": string(page.DocType),
		"batch_id": page.BatchID,
		"ocr_text": page.OCRText,
	}
	for k, v := range page.Fields {
		meta["field:"+k] = v.Value
	}
	return o.db.UpsertObject(domain.StoredObject{
		ObjectKey:      page.Refs.JSONKey,
		Size:           int64(len(art.JSONSidecar)),
		ContentType:    "application/json",
		StorageBackend: o.backend.Name(),
		Metadata:       meta,
		LastModified:   page.UpdatedAt,
		QCStatus:       string(page.QCStatus),
	})
}

func (o *Organiser) markDirty(page domain.Page) {
	o.dirtyMu.Lock()
	defer o.dirtyMu.Unlock()
	o.dirty[page.Refs.JSONKey] = page
}

// DirtyCount reports how many pages are awaiting background reindex.
func (o *Organiser) DirtyCount() int {
	o.dirtyMu.RLock()
	defer o.dirtyMu.RUnlock()
	return len(o.dirty)
}

// DrainDirty retries indexing every dirty page once, dropping it from
// the dirty set on success. Intended to be called periodically by a
// background scheduler.
func (o *Organiser) DrainDirty(ctx context.Context) int {
	o.dirtyMu.RLock()
	pending := make([]domain.Page, 0, len(o.dirty))
	for _, p := range o.dirty {
		pending = append(pending, p)
	}
	o.dirtyMu.RUnlock()

	recovered := 0
	for _, page := range pending {
		r, _, err := o.backend.Get(ctx, page.Refs.JSONKey, "")
		if err != nil {
			continue
		}
		sidecar, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}
		if err := o.index(page, Artefacts{JSONSidecar: sidecar}); err != nil {
			continue
		}
		o.dirtyMu.Lock()
		delete(o.dirty, page.Refs.JSONKey)
		o.dirtyMu.Unlock()
		recovered++
	}
	return recovered
}

// SearchOptions narrows a Search call by the structured fields in
// addition to the free-text query (§4.3).
type SearchOptions struct {
	Owner    string
	Year     int
	DocType  domain.DocType
	BatchID  string
	QCStatus domain.QCStatus
}

// SearchHit is one ranked, recency-tiebroken result (§4.3).
type SearchHit struct {
	ObjectKey string
	Rank      float64
}

// Search runs a free-text query AND-ed with the structured filters in
// opts, ranked by relevance with a recency tiebreak.
func (o *Organiser) Search(query string, opts SearchOptions, limit, offset int) ([]SearchHit, error) {
	prefix := ""
	if opts.Owner != "" {
		prefix = domain.Slugify(opts.Owner) + "/"
		if opts.Year != 0 {
			prefix += fmt.Sprintf("%d/", opts.Year)
			if opts.DocType != "" {
				prefix += domain.Slugify(string(opts.DocType)) + "/"
				if opts.BatchID != "" {
					prefix += domain.Slugify(opts.BatchID) + "/"
				}
			}
		}
	}
	results, err := o.db.Search(metadb.SearchQuery{
		Text:      query,
		KeyPrefix: prefix,
		QCStatus:  string(opts.QCStatus),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{ObjectKey: r.ObjectKey, Rank: r.Rank})
	}
	return hits, nil
}

// Reindex rebuilds the index entry for every object under prefix from
// the backend's current bytes, producing the same results as indexing
// from scratch (§4.3).
func (o *Organiser) Reindex(ctx context.Context, prefix string) (int, error) {
	descriptors, err := o.backend.List(ctx, prefix, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list for reindex: %w", err)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Key < descriptors[j].Key })

	reindexed := 0
	for _, d := range descriptors {
		if !isJSONSidecar(d.Key) {
			continue
		}
		r, meta, err := o.backend.Get(ctx, d.Key, "")
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}
		var page domain.Page
		if err := json.Unmarshal(raw, &page); err != nil {
			continue
		}
		page.Refs.JSONKey = d.Key
		_ = meta
		if err := o.index(page, Artefacts{JSONSidecar: raw}); err != nil {
			o.markDirty(page)
			continue
		}
		reindexed++
	}
	return reindexed, nil
}

// ListBatchPages reads every page's JSON sidecar under key's canonical
// prefix, satisfying merge.PageSource for the batch merger (§4.4).
func (o *Organiser) ListBatchPages(ctx context.Context, key domain.BatchKey) ([]domain.Page, error) {
	prefix := BatchPrefix(key)
	descriptors, err := o.backend.List(ctx, prefix, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list batch pages: %w", err)
	}

	var pages []domain.Page
	for _, d := range descriptors {
		if !isJSONSidecar(d.Key) {
			continue
		}
		r, _, err := o.backend.Get(ctx, d.Key, "")
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}
		var page domain.Page
		if err := json.Unmarshal(raw, &page); err != nil {
			continue
		}
		page.Refs.JSONKey = d.Key
		pages = append(pages, page)
	}
	return pages, nil
}

func isJSONSidecar(key string) bool {
	return len(key) > 5 && key[len(key)-5:] == ".json"
}
