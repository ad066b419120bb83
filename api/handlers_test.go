/*
handlers_test.go - HTTP API tests

Tests for:
- Register / ApplyIncome / GetSummary round trip
- Error code and status mapping of refused commands
- Read model endpoints after the relays caught up
- Calculator listing and preview
- Demo scenarios
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/readside"
	"github.com/warp/contribution-engine/store/sqlite"
	"github.com/warp/contribution-engine/stream"
)

type testServer struct {
	router http.Handler
	relays []*stream.Relay
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tagger := stream.NewTagger(2)
	store, err := sqlite.New(":memory:", tagger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	projector, err := readside.NewProjector(store.DB(), nil)
	require.NoError(t, err)

	registry, err := calculator.DefaultRegistry()
	require.NoError(t, err)
	svc := contributor.NewService(contributor.NewAggregate(registry), store, nil, nil)

	return &testServer{
		router: NewRouter(NewHandler(svc, projector, registry, nil), RouterOptions{}),
		relays: stream.NewRelays(stream.RelayConfig{
			Consumer: readside.ConsumerName,
			Source:   store,
			Offsets:  store,
			Handler:  projector,
		}, tagger),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) drain(t *testing.T) {
	t.Helper()
	for _, r := range s.relays {
		_, err := r.Drain(context.Background())
		require.NoError(t, err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registerBody(id string) RegisterRequest {
	return RegisterRequest{
		ContributorID:        id,
		RegistrationDate:     "2019-04-12",
		PreviousYearlyIncome: 12000,
	}
}

func totalOf(dto SummaryDTO, code string) (TotalDTO, bool) {
	for _, tot := range dto.Totals {
		if tot.Code == code {
			return tot, true
		}
	}
	return TotalDTO{}, false
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestRegister_Created(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/contributors", registerBody("FR-1"))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decode[SummaryDTO](t, rec)
	assert.Equal(t, "FR-1", dto.ContributorID)
	assert.Equal(t, 2019, dto.Year)
	assert.Equal(t, "2019-01-01", dto.Start)
	assert.Equal(t, "2019-12-31", dto.End)
	assert.Equal(t, int64(12000), dto.TotalIncome)
	assert.Len(t, dto.Months, 12)
	assert.Len(t, dto.Totals, 13)

	// Totals are also given with the year's external rounding
	calc := calculator.MustNew(calculator.Config2019())
	for _, tot := range dto.Totals {
		assert.True(t, calc.Round(tot.Amount).Equal(tot.Rounded), "%s", tot.Code)
	}
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/contributors", registerBody("FR-1")).Code)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"already registered", registerBody("FR-1"), http.StatusConflict, "E_ALREADY_REGISTERED"},
		{"bad date", RegisterRequest{ContributorID: "FR-2", RegistrationDate: "12/04/2019"}, http.StatusBadRequest, "E_BAD_REQUEST"},
		{"bad income type", RegisterRequest{ContributorID: "FR-2", RegistrationDate: "2019-04-12", IncomeType: "guess"}, http.StatusBadRequest, "E_BAD_REQUEST"},
		{"missing id", RegisterRequest{RegistrationDate: "2019-04-12"}, http.StatusBadRequest, "E_MISSING_CONTRIBUTOR_ID"},
		{"not json", "{", http.StatusBadRequest, "E_BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/contributors", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestApplyIncome_UpdatesSummary(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/contributors", registerBody("FR-1")).Code)

	rec := s.do(t, http.MethodPost, "/api/contributors/FR-1/incomes", ApplyIncomeRequest{
		Income:     9000,
		IncomeType: "real",
		Start:      "2019-04-01",
		End:        "2019-06-30",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[SummaryDTO](t, rec)
	assert.Equal(t, int64(18000), applied.TotalIncome)
	assert.False(t, applied.DryRun)
	assert.Equal(t, int64(3000), applied.Months[3].Income)

	// GET returns the same as the command reply
	rec = s.do(t, http.MethodGet, "/api/contributors/FR-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[SummaryDTO](t, rec)
	assert.Equal(t, applied.TotalIncome, got.TotalIncome)
	for _, want := range applied.Totals {
		tot, ok := totalOf(got, want.Code)
		require.True(t, ok, want.Code)
		assert.True(t, want.Amount.Equal(tot.Amount), want.Code)
	}
}

func TestApplyIncome_DryRun(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/contributors", registerBody("FR-1")).Code)

	rec := s.do(t, http.MethodPost, "/api/contributors/FR-1/incomes", ApplyIncomeRequest{
		Income: 9000, Start: "2019-04-01", End: "2019-06-30", DryRun: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[SummaryDTO](t, rec)
	assert.True(t, preview.DryRun)
	assert.Equal(t, int64(18000), preview.TotalIncome)

	got := decode[SummaryDTO](t, s.do(t, http.MethodGet, "/api/contributors/FR-1", nil))
	assert.Equal(t, int64(12000), got.TotalIncome)
}

func TestApplyIncome_Errors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/contributors", registerBody("FR-1")).Code)

	tests := []struct {
		name   string
		id     string
		body   ApplyIncomeRequest
		status int
		code   string
	}{
		{"unknown contributor", "FR-9", ApplyIncomeRequest{Income: 1, Start: "2019-04-01", End: "2019-04-30"}, http.StatusNotFound, "E_NOT_REGISTERED_YET"},
		{"inverted period", "FR-1", ApplyIncomeRequest{Income: 1, Start: "2019-05-01", End: "2019-04-30"}, http.StatusBadRequest, "E_ILLEGAL_PERIOD"},
		{"several years", "FR-1", ApplyIncomeRequest{Income: 1, Start: "2019-12-01", End: "2020-01-31"}, http.StatusBadRequest, "E_NOT_SINGLE_YEAR_PERIOD"},
		{"other year", "FR-1", ApplyIncomeRequest{Income: 1, Start: "2020-01-01", End: "2020-01-31"}, http.StatusBadRequest, "E_NOT_CURRENT_CONTRIBUTION_YEAR"},
		{"negative", "FR-1", ApplyIncomeRequest{Income: -1, Start: "2019-04-01", End: "2019-04-30"}, http.StatusBadRequest, "E_NEGATIVE_INCOME"},
		{"bad date", "FR-1", ApplyIncomeRequest{Income: 1, Start: "April", End: "2019-04-30"}, http.StatusBadRequest, "E_BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/contributors/"+tt.id+"/incomes", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestGetSummary_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/contributors/nobody", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "E_NOT_REGISTERED_YET", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// READ MODEL
// =============================================================================

func TestReadModel_AfterRelay(t *testing.T) {
	s := newTestServer(t)
	for _, id := range []string{"FR-1", "BE-1"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/contributors", registerBody(id)).Code)
	}

	// Nothing projected until the relays run
	assert.Empty(t, decode[[]ContributorDTO](t, s.do(t, http.MethodGet, "/api/contributors", nil)))
	s.drain(t)

	list := decode[[]ContributorDTO](t, s.do(t, http.MethodGet, "/api/contributors", nil))
	require.Len(t, list, 2)
	assert.Equal(t, "BE-1", list[0].ContributorID)
	assert.Equal(t, "BE-", list[0].Region)
	assert.Equal(t, "2019-04-12", list[0].RegistrationDate)

	rec := s.do(t, http.MethodGet, "/api/contributors/FR-1/contributions?year=2019", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	months := decode[[]ContributionMonthDTO](t, rec)
	require.Len(t, months, 12)
	assert.Equal(t, 1, months[0].Month)
	assert.Len(t, months[0].Contributions, 13)

	rec = s.do(t, http.MethodGet, "/api/contributors/FR-1/contributions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CALCULATORS
// =============================================================================

func TestListCalculators(t *testing.T) {
	s := newTestServer(t)

	list := decode[[]CalculatorDTO](t, s.do(t, http.MethodGet, "/api/calculators", nil))

	require.Len(t, list, 2)
	assert.Equal(t, 2018, list[0].Year)
	assert.Equal(t, "floor", list[0].ExternalRounding)
	assert.Equal(t, 2019, list[1].Year)
	assert.Len(t, list[1].Rules, 13)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/calculators/2018/preview?income=240000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[PreviewDTO](t, rec)
	assert.Equal(t, 2018, dto.Year)
	assert.False(t, dto.Monthly)
	require.Len(t, dto.Contributions, 13)

	want := calculator.MustNew(calculator.Config2018()).ComputeFromYearlyIncome(dto.Income)
	for _, c := range dto.Contributions {
		assert.True(t, want[c.Code].Amount.Equal(c.Amount), c.Code)
	}

	// Unknown years fall back to the most recent table
	fallback := decode[PreviewDTO](t, s.do(t, http.MethodGet, "/api/calculators/2031/preview?income=1000&monthly=true", nil))
	assert.Equal(t, 2019, fallback.Year)
	assert.True(t, fallback.Monthly)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/calculators/2018/preview?income=-5", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/calculators/next/preview?income=5", nil).Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_LoadTwice(t *testing.T) {
	s := newTestServer(t)

	list := decode[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	require.NotEmpty(t, list)

	for _, sc := range list {
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": sc.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		res := decode[struct {
			Loaded  []string `json:"loaded"`
			Skipped []string `json:"skipped"`
		}](t, rec)
		assert.ElementsMatch(t, sc.Contributors, res.Loaded, sc.ID)
		assert.Empty(t, res.Skipped)
	}

	// Second load skips everyone
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "seasonal-income"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		Loaded  []string `json:"loaded"`
		Skipped []string `json:"skipped"`
	}](t, rec)
	assert.Empty(t, res.Loaded)
	assert.Equal(t, []string{"FR-demo-2"}, res.Skipped)

	sum := decode[SummaryDTO](t, s.do(t, http.MethodGet, "/api/contributors/FR-demo-2", nil))
	assert.Equal(t, int64(1500+9000+18000+3*2000), sum.TotalIncome)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"}).Code)
}
