/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that run realistic command sequences
	through the service, so a fresh instance has contributors, incomes and
	contributions to look at.

AVAILABLE SCENARIOS:

	new-freelancer:  Registered in April, prior income only
	seasonal-income: Quiet winter, busy summer, declared quarter by quarter
	high-earner:     Income above every ceiling, projected to year end
	multi-region:    Contributors spread over several read model regions

HOW SCENARIOS WORK:
 1. Register each contributor of the scenario
 2. Apply its incomes in order
 A contributor that is already registered is skipped entirely, so loading
 a scenario twice leaves the log as it was after the first load.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "seasonal-income"}

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarios' with ID, name, description and steps
 2. Use contributor ids no other scenario uses

NOTE:

	The log is append-only: scenarios add to it and never reset it. Only
	use in development/demo environments.

SEE ALSO:
  - handlers.go: error mapping shared with the contributor endpoints
  - contributor/service.go: command processing
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/income"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable scenario.
type ScenarioDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Contributors []string `json:"contributors"`
}

type scenario struct {
	ScenarioDTO
	steps []scenarioStep
}

// scenarioStep is one contributor: its registration and its incomes.
type scenarioStep struct {
	register contributor.Register
	incomes  []contributor.ApplyIncome
}

func registration(id string, date time.Time, prior int64) contributor.Register {
	return contributor.Register{
		ContributorID:     id,
		RegistrationDate:  date,
		PriorYearlyIncome: prior,
		Category:          income.CategoryEstimated,
	}
}

func declared(id string, amount int64, start, end time.Time, scaleToEnd bool) contributor.ApplyIncome {
	return contributor.ApplyIncome{
		ContributorID: id,
		Income:        income.New(amount, income.CategoryReal, start, end),
		ScaleToEnd:    scaleToEnd,
	}
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "new-freelancer",
			Name:        "New Freelancer",
			Description: "Registered mid-April with last year's income as the only estimate",
		},
		steps: []scenarioStep{
			{register: registration("FR-demo-1", income.Date(2019, time.April, 12), 30000)},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "seasonal-income",
			Name:        "Seasonal Income",
			Description: "Quiet winter, busy summer, declared quarter by quarter",
		},
		steps: []scenarioStep{
			{
				register: registration("FR-demo-2", income.Date(2019, time.January, 7), 24000),
				incomes: []contributor.ApplyIncome{
					declared("FR-demo-2", 1500, income.Date(2019, time.January, 1), income.Date(2019, time.March, 31), false),
					declared("FR-demo-2", 9000, income.Date(2019, time.April, 1), income.Date(2019, time.June, 30), false),
					declared("FR-demo-2", 18000, income.Date(2019, time.July, 1), income.Date(2019, time.September, 30), false),
				},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "high-earner",
			Name:        "High Earner",
			Description: "Income above every ceiling, first months projected to year end",
		},
		steps: []scenarioStep{
			{
				register: registration("FR-demo-3", income.Date(2019, time.February, 1), 250000),
				incomes: []contributor.ApplyIncome{
					declared("FR-demo-3", 60000, income.Date(2019, time.February, 1), income.Date(2019, time.March, 31), true),
				},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "multi-region",
			Name:        "Multi-Region",
			Description: "Contributors in several regions of the read model",
		},
		steps: []scenarioStep{
			{register: registration("BE-demo-1", income.Date(2019, time.March, 1), 18000)},
			{register: registration("DE-demo-1", income.Date(2019, time.May, 20), 42000)},
			{register: registration("FR-demo-4", income.Date(2019, time.June, 3), 8000)},
		},
	},
}

func init() {
	for i := range scenarios {
		for _, step := range scenarios[i].steps {
			scenarios[i].Contributors = append(scenarios[i].Contributors, step.register.ContributorID)
		}
	}
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios handles GET /api/scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario handles POST /api/scenarios/load.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid JSON body")
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "E_UNKNOWN_SCENARIO", fmt.Sprintf("unknown scenario %q", req.ScenarioID))
		return
	}

	loaded, skipped, err := h.loadScenario(r.Context(), s)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.logger.Info("scenario loaded", "scenario", s.ID, "loaded", len(loaded), "skipped", len(skipped))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": s.ID,
		"loaded":   loaded,
		"skipped":  skipped,
	})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

// loadScenario runs every step of s. Contributors registered before are
// left alone.
func (h *Handler) loadScenario(ctx context.Context, s scenario) (loaded, skipped []string, err error) {
	loaded, skipped = []string{}, []string{}
	for _, step := range s.steps {
		id := step.register.ContributorID
		if _, err := h.Service.Register(ctx, step.register); err != nil {
			if contributor.IsConflict(err) {
				skipped = append(skipped, id)
				continue
			}
			return nil, nil, err
		}
		for _, cmd := range step.incomes {
			if _, err := h.Service.ApplyIncome(ctx, cmd); err != nil {
				return nil, nil, fmt.Errorf("scenario %s, contributor %s: %w", s.ID, id, err)
			}
		}
		loaded = append(loaded, id)
	}
	return loaded, skipped, nil
}
