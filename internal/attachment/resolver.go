// Package attachment persists files uploaded with a submission and swaps
// them for storage references in the submitted payload.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"formsapi/internal/model"
	"formsapi/internal/storage"
)

// ErrStorageNotConfigured is returned when a submission carries files but no storage backend is available.
var ErrStorageNotConfigured = errors.New("attachment storage is not configured")

// Error reports the field whose upload failed.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to upload file for field '%s': %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// File is one uploaded binary keyed by field name in a submission.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Resolution is the outcome of Resolve: the payload to validate, and the
// storage keys written for it so the caller can discard them on rejection.
type Resolution struct {
	Payload map[string]any
	Keys    []string
}

// Resolver uploads file fields to storage.
type Resolver struct {
	store       storage.Storage
	concurrency int
	now         func() time.Time
}

// NewResolver constructs a Resolver. A nil store is allowed and makes any
// submission carrying a file fail with ErrStorageNotConfigured.
// concurrency <= 1 uploads the files of a submission one after another.
func NewResolver(store storage.Storage, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{store: store, concurrency: concurrency, now: time.Now}
}

type upload struct {
	field string
	file  File
	key   string
	url   string
	done  bool
}

// Resolve uploads every file whose key names a file field of form and
// returns a copy of payload with those fields set to the stored references.
// Values the client sent under a file field are dropped: only references
// returned by storage reach the payload, so a file field without an upload
// is absent and required-field validation sees it missing. Any failed
// upload fails the whole call and the objects already written are removed.
func (r *Resolver) Resolve(ctx context.Context, form *model.Form, payload map[string]any, files map[string]File) (*Resolution, error) {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, name := range form.Schema.FileFields() {
		delete(out, name)
	}

	var uploads []*upload
	stamp := Timestamp(r.now())
	for _, name := range form.Schema.FileFields() {
		f, ok := files[name]
		if !ok {
			continue
		}
		uploads = append(uploads, &upload{field: name, file: f, key: ObjectKey(form.ID, name, stamp, f.Filename)})
	}
	if len(uploads) == 0 {
		return &Resolution{Payload: out}, nil
	}
	if r.store == nil {
		return nil, ErrStorageNotConfigured
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, u := range uploads {
		g.Go(func() error {
			info, err := r.store.Put(gctx, u.key, u.file.Content, storage.PutObjectOptions{
				Size:        u.file.Size,
				ContentType: contentType(u.file.ContentType),
				Metadata:    map[string]string{"original-filename": u.file.Filename},
			})
			if err != nil {
				return &Error{Field: u.field, Err: err}
			}
			u.url, u.done = info.URL, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var stored []string
		for _, u := range uploads {
			if u.done {
				stored = append(stored, u.key)
			}
		}
		r.Discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}

	keys := make([]string, 0, len(uploads))
	for _, u := range uploads {
		out[u.field] = u.url
		keys = append(keys, u.key)
	}
	return &Resolution{Payload: out, Keys: keys}, nil
}

// Discard removes stored objects, best effort. It returns the keys that could not be removed.
func (r *Resolver) Discard(ctx context.Context, keys []string) []string {
	if r.store == nil {
		return nil
	}
	var failed []string
	for _, k := range keys {
		if err := r.store.Delete(ctx, k); err != nil {
			failed = append(failed, k)
		}
	}
	return failed
}

// Timestamp renders the submission time component of object keys,
// down to the microsecond.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/int(time.Microsecond))
}

// ObjectKey derives the storage key of an attachment from the form, the
// field, the submission timestamp and the extension of the original file.
func ObjectKey(formID, field, stamp, filename string) string {
	field = strings.ReplaceAll(field, "/", "_")
	return path.Join("media", "forms", formID, field+"_"+stamp+filepath.Ext(filename))
}

func contentType(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
