// Package lifecycle turns a role's requested status into CRM field writes and stage moves.
package lifecycle

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/domain"
	"github.com/orderline/orders-bff/internal/fields"
	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// Status is the semantic meaning of a status label.
type Status string

const (
	StatusNew         Status = "new"
	StatusPreparation Status = "preparation"
	StatusStuck       Status = "stuck"
	StatusReady       Status = "ready"
	StatusSent        Status = "sent"
	StatusScheduled   Status = "scheduled"
	StatusInstalled   Status = "installed"
	StatusPaid        Status = "paid"
)

// roleStatuses is the closed vocabulary of each role that reports progress.
var roleStatuses = map[domain.Role][]Status{
	domain.RoleEmployee:  {StatusNew, StatusPaid},
	domain.RoleWarehouse: {StatusNew, StatusPreparation, StatusStuck, StatusReady, StatusSent},
	domain.RoleInstaller: {StatusNew, StatusScheduled, StatusInstalled},
}

// Request is everything the engine needs to plan one update.
type Request struct {
	Role          domain.Role
	Status        string
	StuckReason   string
	InstallDate   string
	InvoiceNumber string

	ResultImage     *domain.Attachment
	InvoiceImage    *domain.Attachment
	PreInstallImage *domain.Attachment

	// CurrentFields are the opportunity's custom fields before the update.
	CurrentFields []domain.CustomField
}

// Upload is a file that must be stored in the CRM before its field can be written.
type Upload struct {
	Key     domain.FieldKey
	FieldID string
	File    domain.FileUpload
}

// Plan is the outcome of a transition: field writes, pending uploads and an optional stage move.
type Plan struct {
	Status  Status
	Updates []domain.FieldUpdate
	Uploads []Upload
	StageID string
}

// Empty reports whether submitting the plan would change nothing.
func (p *Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Uploads) == 0 && p.StageID == ""
}

type vocabulary struct {
	byLabel map[string]Status
	labels  map[Status]string
	allowed []string
}

// Engine is stateless after construction and safe for concurrent use.
type Engine struct {
	table  *config.CRMTable
	vocabs map[domain.Role]vocabulary
}

// NewEngine validates that the table labels every status the engine acts on.
func NewEngine(table *config.CRMTable) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("lifecycle: crm table required")
	}
	e := &Engine{table: table, vocabs: make(map[domain.Role]vocabulary, len(roleStatuses))}
	for role, statuses := range roleStatuses {
		rule, _ := table.Rule(role)
		v := vocabulary{
			byLabel: make(map[string]Status, len(statuses)),
			labels:  make(map[Status]string, len(statuses)),
		}
		for _, status := range statuses {
			label := normalize(rule.Statuses[string(status)])
			if label == "" {
				return nil, fmt.Errorf("lifecycle: role %s has no label for status %s", role, status)
			}
			if _, dup := v.byLabel[label]; dup {
				return nil, fmt.Errorf("lifecycle: role %s reuses label %q", role, label)
			}
			v.byLabel[label] = status
			v.labels[status] = label
			v.allowed = append(v.allowed, label)
		}
		sort.Strings(v.allowed)
		e.vocabs[role] = v
	}
	for _, key := range []domain.FieldKey{domain.FieldStuckReason, domain.FieldInstallDate, domain.FieldResultImage, domain.FieldPaymentOption} {
		if table.FieldID(key) == "" {
			return nil, fmt.Errorf("lifecycle: field %s has no id", key)
		}
	}
	return e, nil
}

// Label returns the configured label of a status for a role.
func (e *Engine) Label(role domain.Role, status Status) string {
	return e.vocabs[role].labels[status]
}

// Allowed lists the labels a role may submit, sorted.
func (e *Engine) Allowed(role domain.Role) []string {
	return append([]string(nil), e.vocabs[role].allowed...)
}

// Plan validates the request and computes the writes. It performs no I/O.
func (e *Engine) Plan(req Request) (*Plan, error) {
	label := normalize(req.Status)
	if label == "" {
		return nil, apperrors.NewValidationError("status is required", map[string]any{"field": "status"})
	}

	plan := &Plan{}
	switch req.Role {
	case domain.RoleEmployee, domain.RoleWarehouse, domain.RoleInstaller:
		status, err := e.resolve(req.Role, label)
		if err != nil {
			return nil, err
		}
		plan.Status = status
		if rule, _ := e.table.Rule(req.Role); rule.StatusField != "" {
			plan.Updates = append(plan.Updates, domain.FieldUpdate{ID: rule.StatusField, Value: e.Label(req.Role, status)})
		}
	case domain.RoleCustomer:
	default:
		return nil, apperrors.NewValidationError("invalid user type", map[string]any{"role": string(req.Role)})
	}

	var err error
	switch req.Role {
	case domain.RoleEmployee:
		if plan.Status == StatusPaid {
			plan.StageID = e.table.Stages.PaidFinal
		}
	case domain.RoleWarehouse:
		err = e.planWarehouse(plan, req)
	case domain.RoleInstaller:
		err = e.planInstaller(plan, req)
	case domain.RoleCustomer:
		err = e.attachImages(plan, req.ResultImage, req.InvoiceImage, req.PreInstallImage)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Engine) planWarehouse(plan *Plan, req Request) error {
	switch plan.Status {
	case StatusStuck:
		reason := strings.TrimSpace(req.StuckReason)
		if reason == "" {
			return apperrors.NewValidationError(
				fmt.Sprintf("stuckReason is required when status is %q", e.Label(domain.RoleWarehouse, StatusStuck)),
				map[string]any{"field": "stuckReason"},
			)
		}
		plan.Updates = append(plan.Updates, e.update(domain.FieldStuckReason, reason))
	case StatusSent:
		plan.StageID = e.table.Stages.InstallerPending
	}
	return nil
}

func (e *Engine) planInstaller(plan *Plan, req Request) error {
	switch plan.Status {
	case StatusScheduled:
		date := strings.TrimSpace(req.InstallDate)
		if date == "" {
			return apperrors.NewValidationError(
				fmt.Sprintf("installDate is required when status is %q. Format is: MM/DD/YYYY", e.Label(domain.RoleInstaller, StatusScheduled)),
				map[string]any{"field": "installDate"},
			)
		}
		plan.Updates = append(plan.Updates, e.update(domain.FieldInstallDate, date))
		plan.StageID = e.table.Stages.InstallerScheduled
	case StatusInstalled:
		if !req.ResultImage.Present() {
			return apperrors.NewValidationError(
				fmt.Sprintf("resultImage is required when status is %q", e.Label(domain.RoleInstaller, StatusInstalled)),
				map[string]any{"field": "resultImage"},
			)
		}
		if err := e.attachImages(plan, req.ResultImage, req.InvoiceImage, req.PreInstallImage); err != nil {
			return err
		}
		if invoice := strings.TrimSpace(req.InvoiceNumber); invoice != "" {
			id := e.table.FieldID(domain.FieldInvoiceNumber)
			if id == "" {
				return fmt.Errorf("lifecycle: field %s has no id", domain.FieldInvoiceNumber)
			}
			plan.Updates = append(plan.Updates, domain.FieldUpdate{ID: id, Value: invoice})
		}
		plan.StageID = e.finishedStage(req.CurrentFields)
	}
	return nil
}

// finishedStage keeps work that still owes money out of the paid column.
func (e *Engine) finishedStage(current []domain.CustomField) string {
	option, ok := fields.LookupString(current, e.table.FieldID(domain.FieldPaymentOption))
	if !ok || !e.table.PaymentOptions.IsUpfront(option) {
		return e.table.Stages.PaidFinal
	}
	return e.table.Stages.UnpaidFinal
}

func (e *Engine) attachImages(plan *Plan, result, invoice, preInstall *domain.Attachment) error {
	images := []struct {
		key        domain.FieldKey
		attachment *domain.Attachment
	}{
		{domain.FieldResultImage, result},
		{domain.FieldInvoiceImage, invoice},
		{domain.FieldPreInstallImage, preInstall},
	}
	for _, img := range images {
		if !img.attachment.Present() {
			continue
		}
		id := e.table.FieldID(img.key)
		if id == "" {
			return fmt.Errorf("lifecycle: field %s has no id", img.key)
		}
		if img.attachment.File != nil {
			plan.Uploads = append(plan.Uploads, Upload{Key: img.key, FieldID: id, File: *img.attachment.File})
			continue
		}
		plan.Updates = append(plan.Updates, domain.FieldUpdate{ID: id, Value: LinkedFile(img.attachment.URL)})
	}
	return nil
}

func (e *Engine) resolve(role domain.Role, label string) (Status, error) {
	v := e.vocabs[role]
	status, ok := v.byLabel[label]
	if !ok {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("invalid status %q for %s", label, role),
			map[string]any{"field": "status", "allowed": append([]string(nil), v.allowed...)},
		)
	}
	return status, nil
}

func (e *Engine) update(key domain.FieldKey, value any) domain.FieldUpdate {
	return domain.FieldUpdate{ID: e.table.FieldID(key), Value: value}
}

// UploadedFile builds the stored value of a file field from an upload result.
func UploadedFile(url, mimeType, name string, size int64) []domain.FileValue {
	return []domain.FileValue{{
		URL:  url,
		Meta: domain.FileMeta{MimeType: mimeType, Name: name, Size: size},
	}}
}

// LinkedFile builds the stored value of a file field for an already hosted URL.
func LinkedFile(url string) []domain.FileValue {
	return []domain.FileValue{{
		URL:  url,
		Meta: domain.FileMeta{Name: path.Base(url)},
	}}
}

func normalize(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}
