// Package ingest turns classified documents into registry updates. Records
// arrive through the IngestDocument RPC or from a Kafka topic or SQS queue.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/identity"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/dmitrijs2005/medkeeper/internal/server/services"
	"github.com/dmitrijs2005/medkeeper/internal/server/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the batch parallelism when none is configured.
const DefaultWorkers = 4

// Recorder files a resolved document. *services.PatientService implements it.
type Recorder interface {
	RecordDocument(ctx context.Context, in services.Sighting) (registry.State, error)
}

// Result describes one ingested record.
type Result struct {
	PatientID  string              `json:"patient_id"`
	Confidence identity.Confidence `json:"confidence"`
	State      registry.State      `json:"state"`
	Filename   string              `json:"filename"`
	StoredRef  string              `json:"stored_ref,omitempty"`
}

// Failure is a record of a batch that was skipped.
type Failure struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchResult lists successes and failures in input order.
type BatchResult struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures,omitempty"`
}

// Coordinator resolves, stores and records documents.
type Coordinator struct {
	recorder Recorder
	storage  storage.DocumentStorage
	logger   logging.Logger
}

// NewCoordinator builds a coordinator. docs may be nil, in which case record
// content is not kept.
func NewCoordinator(recorder Recorder, docs storage.DocumentStorage, logger logging.Logger) *Coordinator {
	return &Coordinator{
		recorder: recorder,
		storage:  docs,
		logger:   logger.With("module", "ingest"),
	}
}

// IsPoison reports whether err means the record can never be ingested and
// should be acknowledged rather than retried.
func IsPoison(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, common.ErrIdentityResolution) ||
		errors.Is(err, common.ErrValidation)
}

// Ingest handles one record.
func (c *Coordinator) Ingest(ctx context.Context, r Record) (Result, error) {
	id, err := identity.Resolve(r.Metadata())
	if err != nil {
		c.logger.Warn(ctx, "document skipped", "file", r.File, "error", err)
		return Result{}, err
	}

	doc := r.ToDocument()
	if len(r.Content) > 0 {
		doc.ContentHash = storage.ContentHash(r.Content)
		if c.storage != nil {
			ref, err := c.storage.Store(ctx, id.PatientID, doc.Filename, r.Content)
			if err != nil {
				return Result{}, fmt.Errorf("store document %s: %w", doc.Filename, err)
			}
			doc.StoredRef = ref
		}
	}

	state, err := c.recorder.RecordDocument(ctx, services.Sighting{
		Identity: id,
		Email:    r.Patient.Email,
		Document: doc,
	})
	if err != nil {
		return Result{}, fmt.Errorf("record document %s: %w", doc.Filename, err)
	}

	if id.LowConfidence() {
		c.logger.Warn(ctx, "low confidence identity, manual review needed", "patient_id", id.PatientID, "file", doc.Filename)
	}
	return Result{
		PatientID:  id.PatientID,
		Confidence: id.Confidence,
		State:      state,
		Filename:   doc.Filename,
		StoredRef:  doc.StoredRef,
	}, nil
}

// IngestBatch ingests records with up to workers running at once. Records
// of the same patient serialize on the registry locks. A failed record is
// reported in Failures and does not stop the batch; only cancellation of
// ctx does.
func (c *Coordinator) IngestBatch(ctx context.Context, records []Record, workers int) (BatchResult, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]*Result, len(records))
	errs := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := c.Ingest(gctx, records[i])
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	out := BatchResult{Results: make([]Result, 0, len(records))}
	for i := range records {
		if results[i] != nil {
			out.Results = append(out.Results, *results[i])
			continue
		}
		out.Failures = append(out.Failures, Failure{Index: i, Filename: records[i].Filename(), Error: errs[i].Error()})
	}
	c.logger.Info(ctx, "batch ingested", "ok", len(out.Results), "failed", len(out.Failures))
	return out, nil
}

// HandleMessage decodes and ingests one queued message. Poison messages
// come back with an error for which IsPoison is true.
func (c *Coordinator) HandleMessage(ctx context.Context, body []byte) (Result, error) {
	r, err := DecodeRecord(body)
	if err != nil {
		return Result{}, err
	}
	return c.Ingest(ctx, r)
}
