package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orders-bff/internal/domain"
)

func TestLoadCRMTableDefaults(t *testing.T) {
	table, err := LoadCRMTable("")
	require.NoError(t, err)

	assert.NotEmpty(t, table.Stages.PaidFinal)
	assert.NotEqual(t, table.Stages.InstallerPending, table.Stages.InstallerScheduled)
	assert.Equal(t, "rV48OOjGojlasHSkHcqB", table.Roles[domain.RoleWarehouse].StatusField)
	assert.Equal(t, VisibilityInstaller, table.Roles[domain.RoleInstaller].Visibility)
	assert.Equal(t, VisibilityNone, table.Roles[domain.RoleCustomer].Visibility)
	assert.True(t, table.PaymentOptions.IsUpfront("upfront-cash"))
	assert.True(t, table.PaymentOptions.IsUpfront("upfront-card"))
	assert.False(t, table.PaymentOptions.IsUpfront("paid-in-full-including-install"))
	assert.False(t, table.PaymentOptions.IsUpfront(""))
}

func TestDefaultStageIDsKeepOrderAndCollapseSharedIDs(t *testing.T) {
	table, err := LoadCRMTable("")
	require.NoError(t, err)

	ids := table.DefaultStageIDs(domain.RoleInstaller)
	assert.Equal(t, []string{table.Stages.InstallerPending, table.Stages.InstallerScheduled}, ids)

	table.Roles[domain.RoleEmployee] = RoleRule{
		Visibility:    VisibilityAll,
		DefaultStages: []StageName{StageEmployee, StageUnpaidFinal},
	}
	assert.Equal(t, []string{table.Stages.Employee}, table.DefaultStageIDs(domain.RoleEmployee))

	assert.Nil(t, table.DefaultStageIDs(domain.Role("nobody")))
}

func TestKnownStageAndFieldLookups(t *testing.T) {
	table, err := LoadCRMTable("")
	require.NoError(t, err)

	assert.True(t, table.KnownStage(table.Stages.Warehouse))
	assert.False(t, table.KnownStage("not-a-stage"))
	assert.False(t, table.KnownStage(""))

	id := table.FieldID(domain.FieldStuckReason)
	require.NotEmpty(t, id)
	key, ok := table.FieldKeyFor(id)
	require.True(t, ok)
	assert.Equal(t, domain.FieldStuckReason, key)

	_, ok = table.FieldKeyFor("")
	assert.False(t, ok)

	known := table.KnownFieldIDs()
	assert.Contains(t, known, id)
	assert.NotContains(t, known, "")
}

func TestLoadCRMTableEnvOverride(t *testing.T) {
	t.Setenv("CRM_FIELD_INVOICE_NUMBER", "inv-123")

	table, err := LoadCRMTable("")
	require.NoError(t, err)
	assert.Equal(t, "inv-123", table.FieldID(domain.FieldInvoiceNumber))
}

func TestLoadCRMTableFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.yaml")
	override := `
roles:
  warehouse:
    visibility: all
    statusField: wh-status
    defaultStages: [warehouse]
    statuses:
      new: "חדש"
      preparation: "בהכנה"
      stuck: "תקוע"
      ready: "מוכן"
      sent: "נשלח"
fields:
  total_price: total-field
noInstallerLabel: "ללא התקנה"
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

	table, err := LoadCRMTable(path)
	require.NoError(t, err)
	assert.Equal(t, "wh-status", table.Roles[domain.RoleWarehouse].StatusField)
	assert.Equal(t, "תקוע", table.Roles[domain.RoleWarehouse].Statuses["stuck"])
	assert.Equal(t, "total-field", table.FieldID(domain.FieldTotalPrice))
	assert.Equal(t, "ללא התקנה", table.NoInstallerLabel)
	// untouched entries survive the merge
	assert.Equal(t, VisibilityInstaller, table.Roles[domain.RoleInstaller].Visibility)
	assert.NotEmpty(t, table.FieldID(domain.FieldStuckReason))
}

func TestLoadCRMTableMissingFile(t *testing.T) {
	_, err := LoadCRMTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateReportsProblems(t *testing.T) {
	table, err := ParseCRMTable([]byte(`
stages:
  employee: a
roles:
  warehouse:
    visibility: everyone
    defaultStages: [nowhere]
  robot:
    visibility: all
fields:
  shoe_size: x
`))
	require.NoError(t, err)

	err = table.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "stage warehouse has no id")
	assert.Contains(t, msg, `role warehouse has invalid visibility "everyone"`)
	assert.Contains(t, msg, `role warehouse references unknown stage "nowhere"`)
	assert.Contains(t, msg, `unknown role "robot"`)
	assert.Contains(t, msg, `unknown field key "shoe_size"`)
}
