package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kevgir/internal/cipher"
	"kevgir/internal/domain"
	"kevgir/internal/pipeline"
	"kevgir/internal/platform"
	"kevgir/internal/platform/platformtest"
	"kevgir/internal/sheet"
	"kevgir/internal/sink"
	"kevgir/internal/store"
)

type memoryOutcomes struct {
	saved    []domain.StageOutcome
	err      error
	resets   int
	resetErr error
}

func (m *memoryOutcomes) SaveOutcomes(_ context.Context, outcomes []domain.StageOutcome) error {
	m.saved = append(m.saved, outcomes...)
	return m.err
}

func (m *memoryOutcomes) ResetOutcomes(context.Context) error {
	m.resets++
	if m.resetErr != nil {
		return m.resetErr
	}
	m.saved = nil
	return nil
}

type harness struct {
	flow     *RunFlow
	srv      *platformtest.Server
	sheet    *sheet.StaticReader
	audit    *sink.Memory
	outcomes *memoryOutcomes
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := cipher.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	srv := platformtest.New(t, c)
	client, err := platform.NewHTTPClient(platform.HTTPConfig{BaseURL: srv.URL, Cipher: c, Timeout: 2 * time.Second})
	require.NoError(t, err)

	rows := [][]string{
		{"42", "1001", "123", "Brand", "BrandP", "Kadikoy", "Brand Kadikoy", "Kadikoy P", "rk-1001"},
		{"42", "1002", "124", "Brand", "BrandP", "Kadikoy", "Brand Kadikoy", "Kadikoy P", "rk-1002"},
		{"42", "2001", "200", "Brand", "BrandP", "Besiktas", "Brand Besiktas", "Besiktas P", "rk-2001"},
		{"short", "row"},
	}
	reader := &sheet.StaticReader{Rows: rows}

	srv.SetMenu(1001, platform.MenuDetails{Headers: []platform.MenuHeader{
		{ID: 9, Items: []platform.MenuItem{{ProductID: 555, Status: "active", ID: 5550}}},
	}})
	srv.SetMenu(1002, platform.MenuDetails{Headers: []platform.MenuHeader{
		{ID: 9, Items: []platform.MenuItem{{ProductID: 700, Status: "active", ID: 7000}}},
	}})

	flags := &store.StaticFlagSource{}
	flags.Set([]domain.ActiveMenuFlag{
		{Kind: domain.FlagKindProduct, RestaurantID: 1001, ProductID: 555, Status: false, ModifierGroupIDs: domain.NoModifiers()},
		{Kind: domain.FlagKindProduct, RestaurantID: 1002, ProductID: 700, Status: true, ModifierGroupIDs: domain.NoModifiers()},
	})

	h := &harness{srv: srv, sheet: reader, audit: &sink.Memory{}, outcomes: &memoryOutcomes{}}
	h.flow = &RunFlow{
		Tokens:        &sheet.StaticTokenSource{Value: "tok"},
		Sheet:         reader,
		Report:        reader,
		Platform:      client,
		Flags:         flags,
		Audit:         h.audit,
		Outcomes:      h.outcomes,
		SpreadsheetID: "sheet-1",
		ReportRange:   "Report!A1",
	}
	return h
}

func TestRunFlowKadikoyEndToEnd(t *testing.T) {
	h := newHarness(t)

	report, err := h.flow.Run(context.Background(), "Kadikoy")
	require.NoError(t, err)
	require.Len(t, report.Keys, 2)
	assert.Equal(t, 1, report.Skipped)
	assert.NotEmpty(t, report.RunID)

	first, second := report.Keys[0], report.Keys[1]
	assert.Equal(t, "rk-1001", first.Key.RestaurantKey)
	assert.Equal(t, pipeline.StateDone, first.State)
	assert.Equal(t, []domain.StatusChange{{Target: domain.TargetProduct, TargetID: 555, StoreID: 1001, Desired: domain.StatusPassive}}, first.Applied)

	assert.Equal(t, pipeline.StateDone, second.State)
	assert.Empty(t, second.Applied)

	calls := h.srv.Calls(platformtest.PathProductStatus)
	require.Len(t, calls, 1)
	assert.Equal(t, float64(555), calls[0].Body["productId"])

	var applyOK int
	for _, o := range h.audit.Outcomes() {
		if o.Stage == domain.StageApply && o.Success {
			applyOK++
		}
		assert.Equal(t, report.RunID, o.RunID)
	}
	assert.Equal(t, 2, applyOK)
	assert.Len(t, h.outcomes.saved, 8)

	written := h.sheet.Appended()
	require.Len(t, written, 2)
	assert.Equal(t, "rk-1001", written[0][3])
	assert.Equal(t, "done", written[0][6])
	assert.Equal(t, "1", written[0][9])
}

func TestRunFlowPreconditionFailures(t *testing.T) {
	h := newHarness(t)
	h.flow.Tokens = &sheet.StaticTokenSource{}
	_, err := h.flow.Run(context.Background(), "Kadikoy")
	assert.Error(t, err)

	h = newHarness(t)
	h.sheet.Err = errors.New("quota")
	_, err = h.flow.Run(context.Background(), "Kadikoy")
	require.Error(t, err)
	assert.Empty(t, h.srv.Calls(""))
}

func TestRunFlowStoreFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t)
	h.outcomes.err = errors.New("db down")
	report, err := h.flow.Run(context.Background(), "Kadikoy")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())
}

func TestRunFlowReplacesReportAndOutcomes(t *testing.T) {
	h := newHarness(t)
	h.flow.ReportClearRange = "Report!A2:L"
	h.flow.ReplaceOutcomes = true

	for i := 0; i < 2; i++ {
		_, err := h.flow.Run(context.Background(), "Kadikoy")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Report!A2:L", "Report!A2:L"}, h.sheet.Cleared)
	assert.Len(t, h.sheet.Appended(), 2)
	assert.Equal(t, 2, h.outcomes.resets)
	assert.Len(t, h.outcomes.saved, 8)
}

func TestRunFlowKeepsHistoryByDefault(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 2; i++ {
		_, err := h.flow.Run(context.Background(), "Kadikoy")
		require.NoError(t, err)
	}
	assert.Empty(t, h.sheet.Cleared)
	assert.Len(t, h.sheet.Appended(), 4)
	assert.Zero(t, h.outcomes.resets)
	assert.Len(t, h.outcomes.saved, 16)
}

func TestRunFlowResetFailureSkipsSave(t *testing.T) {
	h := newHarness(t)
	h.flow.ReplaceOutcomes = true
	h.outcomes.resetErr = errors.New("permission denied")
	report, err := h.flow.Run(context.Background(), "Kadikoy")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())
	assert.Empty(t, h.outcomes.saved)
}

type finder struct{ name, folder string }

func (f *finder) FindSpreadsheet(_ context.Context, name, folderID string) (string, error) {
	f.name, f.folder = name, folderID
	return "found-id", nil
}

func TestRunFlowResolvesSpreadsheetByName(t *testing.T) {
	h := newHarness(t)
	fd := &finder{}
	h.flow.SpreadsheetID = ""
	h.flow.SpreadsheetName = "Menu"
	h.flow.FolderID = "folder-1"
	h.flow.Finder = fd

	res, err := h.flow.Keys(context.Background(), "Besiktas")
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, "Menu", fd.name)
	assert.Equal(t, "folder-1", fd.folder)
}

func TestServiceRunBranchesCollectsErrors(t *testing.T) {
	h := newHarness(t)
	svc, err := NewService(Config{Sync: Sync{Branches: []string{"Kadikoy", "Besiktas"}}}, h.flow, nil)
	require.NoError(t, err)
	require.NoError(t, svc.RunBranches(context.Background()))

	h.sheet.Err = errors.New("quota")
	err = svc.RunBranches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kadikoy")
	assert.Contains(t, err.Error(), "Besiktas")

	closed := false
	svc, err = NewService(Config{}, h.flow, nil, func() { closed = true })
	require.NoError(t, err)
	require.NoError(t, svc.RunBranches(context.Background()))
	svc.Close()
	assert.True(t, closed)
}
