// Package issuance sequences one certificate issuance: build, hash, store,
// render, assemble, store metadata and submit to the chain.
package issuance

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"campuscert/certerr"
	"campuscert/certificate"
	"campuscert/contentstore"
	"campuscert/metrics"
	"campuscert/renderer"

	"github.com/google/uuid"
)

// Request is the completion request handed over by the session layer.
type Request struct {
	CourseID      int    `json:"courseId"`
	CourseTitle   string `json:"courseTitle"`
	StudentName   string `json:"studentName"`
	StudentEmail  string `json:"studentEmail"`
	WalletAddress string `json:"walletAddress"`
}

// ContentStore is implemented by *contentstore.Client.
type ContentStore interface {
	PutJSON(ctx context.Context, payload interface{}, meta contentstore.Meta) (string, error)
	PutBinary(ctx context.Context, r io.Reader, fileName string, meta contentstore.Meta) (string, error)
}

// Submitter is implemented by *chain.Submitter.
type Submitter interface {
	Submit(ctx context.Context, student, metadataURI string) (string, error)
}

// Result describes a confirmed issuance.
type Result struct {
	TransactionID    string
	CertificateID    string
	Hash             string
	CertificateURI   string
	ImageURI         string
	MetadataURI      string
	Metadata         certificate.Metadata
	UsedGenericImage bool
}

// Orchestrator holds only immutable collaborators, so one value serves
// concurrent issuances.
type Orchestrator struct {
	store           ContentStore
	renderer        renderer.Renderer
	submitter       Submitter
	genericImageURI string
	issuerName      string
	now             func() time.Time
}

// Options configures an Orchestrator.
type Options struct {
	GenericImageURI string
	IssuerName      string
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(store ContentStore, r renderer.Renderer, sub Submitter, opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:           store,
		renderer:        r,
		submitter:       sub,
		genericImageURI: opts.GenericImageURI,
		issuerName:      opts.IssuerName,
		now:             now,
	}
}

// artifacts carries what the steps before the image path produced.
type artifacts struct {
	record         certificate.Record
	hash           string
	certificateURI string
}

// Issue runs the whole pipeline for req. Rendering problems never reach the
// caller; every other failure is returned as a *certerr.Error. When the chain
// step fails the partially filled Result is returned with the error.
func (o *Orchestrator) Issue(ctx context.Context, req Request) (Result, error) {
	log := slog.With("attempt_id", uuid.NewString(), "course_id", req.CourseID, "wallet", req.WalletAddress)

	res, err := o.issue(ctx, log, req)
	outcome := "CONFIRMED"
	if err != nil {
		outcome = string(certerr.KindOf(err))
		log.Error("Certificate issuance failed", "kind", outcome, "error", err)
	} else {
		log.Info("Certificate issued",
			"certificate_id", res.CertificateID,
			"tx_hash", res.TransactionID,
			"generic_image", res.UsedGenericImage,
		)
	}
	metrics.IssuancesTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (o *Orchestrator) issue(ctx context.Context, log *slog.Logger, req Request) (Result, error) {
	rec := certificate.Build(req.StudentName, req.StudentEmail, req.WalletAddress,
		req.CourseID, req.CourseTitle, o.issuerName, o.now())

	hash, err := certificate.Hash(rec)
	if err != nil {
		return Result{}, err
	}

	certURI, err := o.store.PutJSON(ctx, rec, contentstore.Meta{
		Name:      "certificate-" + rec.ID,
		KeyValues: keyValues("certificate", rec),
	})
	if err != nil {
		return Result{}, err
	}
	log.Debug("Certificate record stored", "certificate_id", rec.ID, "uri", certURI)

	a := artifacts{record: rec, hash: hash, certificateURI: certURI}
	res, err := o.primarySegment(ctx, a)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		log.Warn("Image path failed, using generic image", "error", err)
		res, err = o.fallbackSegment(ctx, a, err)
		if err != nil {
			return Result{}, err
		}
	}

	txID, err := o.submitter.Submit(ctx, req.WalletAddress, res.MetadataURI)
	if err != nil {
		// Stored artifacts and any submitted hash stay visible for reconciliation.
		res.TransactionID = certerr.TxHashOf(err)
		return res, err
	}
	res.TransactionID = txID
	return res, nil
}

// primarySegment renders, stores the image, assembles and stores metadata.
func (o *Orchestrator) primarySegment(ctx context.Context, a artifacts) (Result, error) {
	img, err := o.renderer.Render(ctx, a.record)
	if err != nil {
		return Result{}, err
	}
	imageURI, err := o.store.PutBinary(ctx, bytes.NewReader(img), "certificate-"+a.record.ID+".png", contentstore.Meta{
		Name:      "certificate-image-" + a.record.ID,
		KeyValues: keyValues("certificate-image", a.record),
	})
	if err != nil {
		return Result{}, err
	}
	return o.storeMetadata(ctx, a, imageURI, false)
}

// fallbackSegment swaps in the generic image and keeps the real record URI and hash.
// Without a generic image the primary failure is returned, rendering errors
// reported as Unknown.
func (o *Orchestrator) fallbackSegment(ctx context.Context, a artifacts, primaryErr error) (Result, error) {
	if o.genericImageURI == "" {
		if certerr.KindOf(primaryErr) == certerr.RenderingUnsupported {
			return Result{}, certerr.New(certerr.Unknown, "issuance.fallback", primaryErr)
		}
		return Result{}, primaryErr
	}
	metrics.GenericImageFallbacks.Inc()
	return o.storeMetadata(ctx, a, o.genericImageURI, true)
}

func (o *Orchestrator) storeMetadata(ctx context.Context, a artifacts, imageURI string, generic bool) (Result, error) {
	md := certificate.Assemble(a.record, a.hash, imageURI, a.certificateURI)
	metadataURI, err := o.store.PutJSON(ctx, md, contentstore.Meta{
		Name:      "certificate-metadata-" + a.record.ID,
		KeyValues: keyValues("certificate-metadata", a.record),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		CertificateID:    a.record.ID,
		Hash:             a.hash,
		CertificateURI:   a.certificateURI,
		ImageURI:         imageURI,
		MetadataURI:      metadataURI,
		Metadata:         md,
		UsedGenericImage: generic,
	}, nil
}

func keyValues(kind string, rec certificate.Record) map[string]string {
	return map[string]string{
		"type":          kind,
		"certificateId": rec.ID,
		"courseId":      strconv.Itoa(rec.CourseID),
		"studentWallet": rec.IssuedTo,
	}
}

// Response is the value exposed to the calling collaborator.
type Response struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
	Kind          string `json:"kind,omitempty"`
}

// Respond converts an Issue outcome into a Response.
func Respond(res Result, err error) Response {
	if err != nil {
		kind := certerr.KindOf(err)
		return Response{Success: false, TransactionID: res.TransactionID, Error: certerr.Message(kind), Kind: string(kind)}
	}
	return Response{Success: true, TransactionID: res.TransactionID}
}
