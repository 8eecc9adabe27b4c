package company

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/logger"
)

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req *model.CreateCompanyRequest) (*model.Company, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Company, error)
	List(ctx context.Context, userID uuid.UUID, filters *model.CompanyFilters) (*model.CompanyPage, error)
	Update(ctx context.Context, userID, id uuid.UUID, req *model.CreateCompanyRequest) (*model.Company, error)
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, req *model.UpdateCompanyStatusRequest) (*model.Company, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Timeline(ctx context.Context, userID, companyID uuid.UUID) ([]*model.StatusEvent, error)
}

// DocumentDeleter is the slice of the document service the delete
// cascade needs.
type DocumentDeleter interface {
	List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.DocumentWithURL, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	companies repository.CompanyRepository
	events    repository.StatusEventRepository
	documents DocumentDeleter
	outbox    repository.OutboxRepository
	logger    *logger.Logger
}

func NewService(
	companies repository.CompanyRepository,
	events repository.StatusEventRepository,
	documents DocumentDeleter,
	outbox repository.OutboxRepository,
	logger *logger.Logger,
) Service {
	return &service{
		companies: companies,
		events:    events,
		documents: documents,
		outbox:    outbox,
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req *model.CreateCompanyRequest) (*model.Company, error) {
	status := model.StatusNotApplied
	if req.Status != nil {
		status = *req.Status
	}
	if err := validateOptions(status, req.DriveType, req.Type); err != nil {
		return nil, err
	}

	company := &model.Company{
		UserID:    userID,
		Name:      req.Name,
		Role:      req.Role,
		Package:   req.Package,
		DriveType: req.DriveType,
		Type:      req.Type,
		Link:      req.Link,
		Status:    status,
		Deadline:  req.Deadline,
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	// The deadline only matters while the application is still open.
	if company.Deadline != nil && company.Status == model.StatusNotApplied {
		s.enqueueDeadlineCreate(ctx, company)
	}

	return company, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*model.Company, error) {
	company, err := s.companies.Get(ctx, userID, id)
	if err != nil {
		return nil, errors.NotFound("company")
	}
	return company, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, filters *model.CompanyFilters) (*model.CompanyPage, error) {
	return s.companies.List(ctx, userID, filters)
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, req *model.CreateCompanyRequest) (*model.Company, error) {
	company, err := s.companies.Get(ctx, userID, id)
	if err != nil {
		return nil, errors.NotFound("company")
	}
	if err := validateOptions(company.Status, req.DriveType, req.Type); err != nil {
		return nil, err
	}

	deadlineChanged := !equalDeadlines(company.Deadline, req.Deadline)

	company.Name = req.Name
	company.Role = req.Role
	company.Package = req.Package
	company.DriveType = req.DriveType
	company.Type = req.Type
	company.Link = req.Link
	company.Deadline = req.Deadline

	if err := s.companies.Update(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	// Moving the deadline re-creates the calendar event rather than
	// patching it.
	if deadlineChanged && company.Status == model.StatusNotApplied {
		if company.GoogleEventID != nil {
			s.enqueueEventDelete(ctx, userID, *company.GoogleEventID)
			if err := s.companies.SetGoogleEventID(ctx, company.ID, nil); err != nil {
				s.logger.Error(err, "failed to clear google event id", "company_id", company.ID.String())
			}
			company.GoogleEventID = nil
		}
		if company.Deadline != nil {
			s.enqueueDeadlineCreate(ctx, company)
		}
	}

	return company, nil
}

func (s *service) UpdateStatus(ctx context.Context, userID, id uuid.UUID, req *model.UpdateCompanyStatusRequest) (*model.Company, error) {
	if !isOption(req.Status, model.StatusOptions) {
		return nil, errors.BadRequest(fmt.Sprintf("unknown status %q", req.Status), nil)
	}

	company, err := s.companies.Get(ctx, userID, id)
	if err != nil {
		return nil, errors.NotFound("company")
	}

	oldStatus := company.Status
	if err := s.companies.UpdateStatus(ctx, userID, id, req.Status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	company.Status = req.Status

	eventDate := time.Now()
	if req.StatusDateTime != nil {
		eventDate = *req.StatusDateTime
	}
	event := &model.StatusEvent{
		CompanyID: company.ID,
		UserID:    userID,
		Status:    req.Status,
		EventDate: eventDate,
		Notes:     req.Notes,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record status event: %w", err)
	}

	// Leaving "Not Applied" retires the deadline and its calendar event.
	if oldStatus == model.StatusNotApplied && req.Status != model.StatusNotApplied && company.GoogleEventID != nil {
		s.enqueueEventDelete(ctx, userID, *company.GoogleEventID)
		if err := s.companies.SetGoogleEventID(ctx, company.ID, nil); err != nil {
			s.logger.Error(err, "failed to clear google event id", "company_id", company.ID.String())
		}
		company.GoogleEventID = nil
	}

	if model.IsFollowUpStatus(req.Status) && eventDate.After(time.Now()) {
		s.enqueueStatusCreate(ctx, event, company.Name)
	}

	return company, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	company, err := s.companies.Get(ctx, userID, id)
	if err != nil {
		return errors.NotFound("company")
	}

	events, err := s.events.ListForCompany(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to list status events: %w", err)
	}
	for _, event := range events {
		if event.GoogleEventID != nil {
			s.enqueueEventDelete(ctx, userID, *event.GoogleEventID)
		}
	}
	if company.GoogleEventID != nil {
		s.enqueueEventDelete(ctx, userID, *company.GoogleEventID)
	}

	// Documents and their stored files go with the company.
	docs, err := s.documents.List(ctx, userID, &id)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		if err := s.documents.Delete(ctx, userID, doc.ID); err != nil {
			s.logger.Error(err, "failed to delete document", "document_id", doc.ID.String())
		}
	}

	if err := s.events.DeleteForCompany(ctx, id); err != nil {
		return fmt.Errorf("failed to delete status events: %w", err)
	}
	if err := s.companies.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}

func (s *service) Timeline(ctx context.Context, userID, companyID uuid.UUID) ([]*model.StatusEvent, error) {
	if _, err := s.companies.Get(ctx, userID, companyID); err != nil {
		return nil, errors.NotFound("company")
	}
	return s.events.ListForCompany(ctx, userID, companyID)
}

func (s *service) enqueueDeadlineCreate(ctx context.Context, company *model.Company) {
	payload, err := json.Marshal(model.CalendarDeadlineCreatePayload{
		CompanyID:   company.ID,
		UserID:      company.UserID,
		CompanyName: company.Name,
		Role:        company.Role,
		Deadline:    *company.Deadline,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal calendar payload")
		return
	}
	s.enqueue(ctx, model.EventCalendarDeadlineCreate, payload)
}

func (s *service) enqueueStatusCreate(ctx context.Context, event *model.StatusEvent, companyName string) {
	payload, err := json.Marshal(model.CalendarStatusCreatePayload{
		StatusEventID: event.ID,
		UserID:        event.UserID,
		CompanyName:   companyName,
		Title:         event.Status,
		Date:          event.EventDate,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal calendar payload")
		return
	}
	s.enqueue(ctx, model.EventCalendarStatusCreate, payload)
}

func (s *service) enqueueEventDelete(ctx context.Context, userID uuid.UUID, googleEventID string) {
	payload, err := json.Marshal(model.CalendarEventDeletePayload{
		UserID:        userID,
		GoogleEventID: googleEventID,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal calendar payload")
		return
	}
	s.enqueue(ctx, model.EventCalendarEventDelete, payload)
}

func (s *service) enqueue(ctx context.Context, eventType string, payload json.RawMessage) {
	err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		s.logger.Error(err, "failed to enqueue outbox event", "event_type", eventType)
	}
}

func validateOptions(status, driveType, companyType string) error {
	if !isOption(status, model.StatusOptions) {
		return errors.BadRequest(fmt.Sprintf("unknown status %q", status), nil)
	}
	if !isOption(driveType, model.DriveTypeOptions) {
		return errors.BadRequest(fmt.Sprintf("unknown drive type %q", driveType), nil)
	}
	if !isOption(companyType, model.TypeOptions) {
		return errors.BadRequest(fmt.Sprintf("unknown type %q", companyType), nil)
	}
	return nil
}

func isOption(value string, options []string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func equalDeadlines(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
