package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orderline/orders-bff/internal/domain"
)

//go:embed crm.yaml
var defaultCRMTable []byte

// StageName references an entry of StageTable from role rules.
type StageName string

const (
	StageEmployee           StageName = "employee"
	StageWarehouse          StageName = "warehouse"
	StageInstallerPending   StageName = "installerPending"
	StageInstallerScheduled StageName = "installerScheduled"
	StagePaidFinal          StageName = "paidFinal"
	StageUnpaidFinal        StageName = "unpaidFinal"
)

// StageTable holds the pipeline stage ids this service knows about.
type StageTable struct {
	Employee           string `yaml:"employee"`
	Warehouse          string `yaml:"warehouse"`
	InstallerPending   string `yaml:"installerPending"`
	InstallerScheduled string `yaml:"installerScheduled"`
	PaidFinal          string `yaml:"paidFinal"`
	UnpaidFinal        string `yaml:"unpaidFinal"`
}

// Visibility controls which opportunities a role may list.
type Visibility string

const (
	VisibilityAll       Visibility = "all"
	VisibilityInstaller Visibility = "installer"
	VisibilityNone      Visibility = "none"
)

// RoleRule is the static per-role configuration.
type RoleRule struct {
	Visibility    Visibility        `yaml:"visibility"`
	StatusField   string            `yaml:"statusField"`
	DefaultStages []StageName       `yaml:"defaultStages"`
	Statuses      map[string]string `yaml:"statuses"`
}

// PaymentOptions holds the labels of the payment-option field.
type PaymentOptions struct {
	Complete    string `yaml:"complete"`
	Partial     string `yaml:"partial"`
	UpfrontCard string `yaml:"upfrontCard"`
	UpfrontCash string `yaml:"upfrontCash"`
}

// IsUpfront reports whether the label is one of the two deposit-only options.
func (p PaymentOptions) IsUpfront(label string) bool {
	return label != "" && (label == p.UpfrontCard || label == p.UpfrontCash)
}

// CRMTable is the immutable role/stage/field table. It is loaded once and shared by pointer.
type CRMTable struct {
	Stages           StageTable                 `yaml:"stages"`
	Roles            map[domain.Role]RoleRule   `yaml:"roles"`
	Fields           map[domain.FieldKey]string `yaml:"fields"`
	PaymentOptions   PaymentOptions             `yaml:"paymentOptions"`
	NoInstallerLabel string                     `yaml:"noInstallerLabel"`
}

// LoadCRMTable parses the embedded table, applies an optional override file (whole role entries are
// replaced, scalar fields overwritten) and CRM_FIELD_<KEY> env overrides, then validates the result.
func LoadCRMTable(overridePath string) (*CRMTable, error) {
	table, err := ParseCRMTable(defaultCRMTable)
	if err != nil {
		return nil, err
	}
	if overridePath != "" {
		raw, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", overridePath, err)
		}
		if err := yaml.Unmarshal(raw, table); err != nil {
			return nil, fmt.Errorf("parse %s: %w", overridePath, err)
		}
	}
	for _, key := range domain.FieldKeys {
		envKey := "CRM_FIELD_" + strings.ToUpper(string(key))
		if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
			table.Fields[key] = val
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// ParseCRMTable decodes a table without env overrides or validation.
func ParseCRMTable(raw []byte) (*CRMTable, error) {
	table := &CRMTable{}
	if err := yaml.Unmarshal(raw, table); err != nil {
		return nil, fmt.Errorf("parse crm table: %w", err)
	}
	if table.Roles == nil {
		table.Roles = map[domain.Role]RoleRule{}
	}
	if table.Fields == nil {
		table.Fields = map[domain.FieldKey]string{}
	}
	return table, nil
}

// Validate checks the table is internally consistent.
func (t *CRMTable) Validate() error {
	var problems []string
	for _, name := range []StageName{StageEmployee, StageWarehouse, StageInstallerPending, StageInstallerScheduled, StagePaidFinal, StageUnpaidFinal} {
		if id, _ := t.StageID(name); id == "" {
			problems = append(problems, fmt.Sprintf("stage %s has no id", name))
		}
	}
	for role, rule := range t.Roles {
		if _, ok := domain.ParseRole(string(role)); !ok {
			problems = append(problems, fmt.Sprintf("unknown role %q", role))
			continue
		}
		switch rule.Visibility {
		case VisibilityAll, VisibilityInstaller, VisibilityNone:
		default:
			problems = append(problems, fmt.Sprintf("role %s has invalid visibility %q", role, rule.Visibility))
		}
		for _, stage := range rule.DefaultStages {
			if _, ok := t.StageID(stage); !ok {
				problems = append(problems, fmt.Sprintf("role %s references unknown stage %q", role, stage))
			}
		}
	}
	for key := range t.Fields {
		if !knownFieldKey(key) {
			problems = append(problems, fmt.Sprintf("unknown field key %q", key))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// StageID resolves a stage name to its CRM id.
func (t *CRMTable) StageID(name StageName) (string, bool) {
	switch name {
	case StageEmployee:
		return t.Stages.Employee, true
	case StageWarehouse:
		return t.Stages.Warehouse, true
	case StageInstallerPending:
		return t.Stages.InstallerPending, true
	case StageInstallerScheduled:
		return t.Stages.InstallerScheduled, true
	case StagePaidFinal:
		return t.Stages.PaidFinal, true
	case StageUnpaidFinal:
		return t.Stages.UnpaidFinal, true
	default:
		return "", false
	}
}

// KnownStage reports whether id is one of the configured stage ids.
func (t *CRMTable) KnownStage(id string) bool {
	if id == "" {
		return false
	}
	s := t.Stages
	for _, known := range []string{s.Employee, s.Warehouse, s.InstallerPending, s.InstallerScheduled, s.PaidFinal, s.UnpaidFinal} {
		if known == id {
			return true
		}
	}
	return false
}

// Rule returns the configuration of a role.
func (t *CRMTable) Rule(role domain.Role) (RoleRule, bool) {
	rule, ok := t.Roles[role]
	return rule, ok
}

// DefaultStageIDs resolves the stages listed for a role when a caller does not name any.
// Stage names that share an id collapse to one entry; order follows the table.
func (t *CRMTable) DefaultStageIDs(role domain.Role) []string {
	rule, ok := t.Roles[role]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(rule.DefaultStages))
	ids := make([]string, 0, len(rule.DefaultStages))
	for _, name := range rule.DefaultStages {
		id, ok := t.StageID(name)
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// FieldID returns the CRM id configured for a field key; empty when not configured.
func (t *CRMTable) FieldID(key domain.FieldKey) string {
	return t.Fields[key]
}

// FieldKeyFor is the reverse lookup of FieldID.
func (t *CRMTable) FieldKeyFor(id string) (domain.FieldKey, bool) {
	if id == "" {
		return "", false
	}
	for key, fieldID := range t.Fields {
		if fieldID == id {
			return key, true
		}
	}
	return "", false
}

// KnownFieldIDs returns the set of configured field ids.
func (t *CRMTable) KnownFieldIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(t.Fields))
	for _, id := range t.Fields {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func knownFieldKey(key domain.FieldKey) bool {
	for _, known := range domain.FieldKeys {
		if known == key {
			return true
		}
	}
	return false
}
