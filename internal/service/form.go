package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"formsapi/internal/attachment"
	"formsapi/internal/export"
	"formsapi/internal/formschema"
	"formsapi/internal/logger"
	"formsapi/internal/model"
	"formsapi/internal/policy"
	"formsapi/internal/repository"
)

var tracer = otel.Tracer("formsapi/internal/service")

// FormInput carries the writable attributes of a form. On update, nil or
// empty members keep the current value.
type FormInput struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	AllowExport *bool           `json:"allow_excel_download"`
}

// FormListResult is the service-level DTO for paginated forms.
type FormListResult struct {
	Items []model.Form `json:"data"`
	Total int          `json:"total"`
}

// ResponseList is every response of one form, newest first.
type ResponseList struct {
	FormID    string           `json:"form_id"`
	Form      string           `json:"form"`
	Total     int              `json:"total_responses"`
	Responses []model.Response `json:"responses"`
}

// ExportFile is a rendered export ready to download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// FormService defines the use cases around forms and their responses.
// Every call is made on behalf of an identity and checked against the policy.
type FormService interface {
	Create(ctx context.Context, id policy.Identity, in FormInput) (*model.Form, error)
	List(ctx context.Context, id policy.Identity, limit, offset int) (*FormListResult, error)
	Get(ctx context.Context, id policy.Identity, formID string) (*model.Form, error)
	Update(ctx context.Context, id policy.Identity, formID string, in FormInput) (*model.Form, error)
	Delete(ctx context.Context, id policy.Identity, formID string) error

	// Submit runs the submission pipeline: policy, attachment upload,
	// validation, persistence. Uploaded objects are removed when a later
	// step rejects the submission.
	Submit(ctx context.Context, id policy.Identity, formID string, payload map[string]any, files map[string]attachment.File) (*model.Response, error)

	Responses(ctx context.Context, id policy.Identity, formID string) (*ResponseList, error)
	Export(ctx context.Context, id policy.Identity, formID string) (*ExportFile, error)
}

// FormOptions tunes the form service.
type FormOptions struct {
	StrictSchema  bool
	UploadTimeout time.Duration
}

type formService struct {
	forms     repository.FormRepository
	responses repository.ResponseRepository
	resolver  *attachment.Resolver
	policy    policy.Policy
	schema    formschema.Options
	timeout   time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

// NewFormService constructs a new FormService.
// A zero UploadTimeout defaults to 30 seconds.
func NewFormService(forms repository.FormRepository, responses repository.ResponseRepository, resolver *attachment.Resolver, pol policy.Policy, opt FormOptions) FormService {
	if opt.UploadTimeout <= 0 {
		opt.UploadTimeout = 30 * time.Second
	}
	return &formService{
		forms:     forms,
		responses: responses,
		resolver:  resolver,
		policy:    pol,
		schema:    formschema.Options{Strict: opt.StrictSchema},
		timeout:   opt.UploadTimeout,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Component("form_service"),
	}
}

func (s *formService) authorize(id policy.Identity, op policy.Operation, f *model.Form) error {
	if id.Anonymous() {
		return ErrUnauthenticated
	}
	if !s.policy.Allow(id, op, f) {
		return ErrForbidden
	}
	return nil
}

func (s *formService) load(ctx context.Context, formID string) (*model.Form, error) {
	if formID == "" {
		return nil, ErrIDRequired
	}
	f, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *formService) Create(ctx context.Context, id policy.Identity, in FormInput) (*model.Form, error) {
	if err := s.authorize(id, policy.CreateSchema, nil); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if len(in.Schema) == 0 {
		return nil, ErrSchemaRequired
	}
	schema, err := s.schema.ValidateSchema(in.Schema)
	if err != nil {
		return nil, err
	}

	now := s.now()
	f := &model.Form{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Schema:         *schema,
		AllowExport:    true,
		CreatedBy:      id.UserID,
		CreatedByEmail: id.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Description != nil {
		f.Description = *in.Description
	}
	if in.AllowExport != nil {
		f.AllowExport = *in.AllowExport
	}
	stored, err := s.forms.Create(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("save form: %w", err)
	}
	return stored, nil
}

// List returns paginated forms without exposing repository types.
func (s *formService) List(ctx context.Context, id policy.Identity, limit, offset int) (*FormListResult, error) {
	if err := s.authorize(id, policy.ViewSchema, nil); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.forms.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &FormListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *formService) Get(ctx context.Context, id policy.Identity, formID string) (*model.Form, error) {
	f, err := s.load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(id, policy.ViewSchema, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Update replaces the schema wholesale when one is given. Stored responses
// are left as they are even if the field list changes.
func (s *formService) Update(ctx context.Context, id policy.Identity, formID string, in FormInput) (*model.Form, error) {
	f, err := s.load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(id, policy.UpdateSchema, f); err != nil {
		return nil, err
	}

	next := *f
	if in.Name != "" {
		next.Name = in.Name
	}
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.AllowExport != nil {
		next.AllowExport = *in.AllowExport
	}
	if len(in.Schema) > 0 {
		schema, err := s.schema.ValidateSchema(in.Schema)
		if err != nil {
			return nil, err
		}
		next.Schema = *schema
	}
	next.UpdatedAt = s.now()

	out, err := s.forms.Update(ctx, &next)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("update form: %w", err)
	}
	return out, nil
}

func (s *formService) Delete(ctx context.Context, id policy.Identity, formID string) error {
	f, err := s.load(ctx, formID)
	if err != nil {
		return err
	}
	if err := s.authorize(id, policy.DeleteSchema, f); err != nil {
		return err
	}
	if err := s.forms.Delete(ctx, formID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFormNotFound
		}
		return err
	}
	return nil
}

func (s *formService) Submit(ctx context.Context, id policy.Identity, formID string, payload map[string]any, files map[string]attachment.File) (*model.Response, error) {
	ctx, span := tracer.Start(ctx, "FormService.Submit", trace.WithAttributes(
		attribute.String("form.id", formID),
		attribute.Int("submission.files", len(files)),
	))
	defer span.End()

	resp, err := s.submit(ctx, id, formID, payload, files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("response.id", resp.ID))
	return resp, nil
}

func (s *formService) submit(ctx context.Context, id policy.Identity, formID string, payload map[string]any, files map[string]attachment.File) (*model.Response, error) {
	f, err := s.load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(id, policy.SubmitResponse, f); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}

	uctx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.resolver.Resolve(uctx, f, payload, files)
	cancel()
	if err != nil {
		return nil, err
	}

	data, err := formschema.ValidateResponse(&f.Schema, res.Payload)
	if err != nil {
		s.discard(ctx, formID, res.Keys)
		return nil, err
	}

	resp := &model.Response{
		ID:          uuid.New().String(),
		FormID:      f.ID,
		FormName:    f.Name,
		UserID:      id.UserID,
		UserEmail:   id.Email,
		Data:        data,
		SubmittedAt: s.now(),
	}
	stored, err := s.responses.Create(ctx, resp)
	if err != nil {
		s.discard(ctx, formID, res.Keys)
		return nil, fmt.Errorf("save response: %w", err)
	}
	stored.FormName = f.Name
	return stored, nil
}

// discard removes the objects of a rejected submission. Leftovers are logged.
func (s *formService) discard(ctx context.Context, formID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	if failed := s.resolver.Discard(context.WithoutCancel(ctx), keys); len(failed) > 0 {
		s.log.WithFields(logrus.Fields{
			"form_id": formID,
			"keys":    failed,
		}).Warn("orphaned attachments left in storage")
	}
}

func (s *formService) Responses(ctx context.Context, id policy.Identity, formID string) (*ResponseList, error) {
	f, err := s.load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(id, policy.ViewResponses, f); err != nil {
		return nil, err
	}
	items, err := s.responses.ListByForm(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	return &ResponseList{FormID: f.ID, Form: f.Name, Total: len(items), Responses: items}, nil
}

func (s *formService) Export(ctx context.Context, id policy.Identity, formID string) (*ExportFile, error) {
	f, err := s.load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if id.Anonymous() {
		return nil, ErrUnauthenticated
	}
	if !f.AllowExport {
		return nil, ErrExportDisabled
	}
	if err := s.authorize(id, policy.Export, f); err != nil {
		return nil, err
	}

	items, err := s.responses.ListByForm(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	content, err := export.Render(f, items)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    export.Filename(f),
		ContentType: export.ContentType,
		Content:     content,
	}, nil
}
