/*
Package readside materializes committed contributor events into queryable
SQLite tables.

PURPOSE:
  The aggregate answers "what does this contributor owe right now" by
  replaying its log. The read model answers listing questions across
  contributors without touching the aggregate.

KEY TABLES:
  contributors:  (region, contributor_id, registration_date)
  contributions: (region, contributor_id, year, month, contributions_json)

REGION:
  The partition key is the first three characters of the contributor id
  ("FR-1234" -> "FR-"), or "???" for shorter ids.

IDEMPOTENCY:
  Every write is an upsert keyed by contributor (and year/month), so a
  replayed event leaves the tables as they were.

SEE ALSO:
  - stream/relay.go: feeds Handle
  - contributor/event.go: payload contract
*/
package readside

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/income"
	"github.com/warp/contribution-engine/logger"
	"github.com/warp/contribution-engine/stream"
)

// ConsumerName identifies the projector's offsets.
const ConsumerName = "readside"

// Region is the partition key of a contributor id.
func Region(contributorID string) string {
	if len(contributorID) < 3 {
		return "???"
	}
	return contributorID[:3]
}

// ContributorRow is one registered contributor.
type ContributorRow struct {
	Region           string    `json:"region"`
	ContributorID    string    `json:"contributor_id"`
	RegistrationDate time.Time `json:"registration_date"`
}

// ContributionRow is one month of one contributor.
type ContributionRow struct {
	Region        string                    `json:"region"`
	ContributorID string                    `json:"contributor_id"`
	Year          int                       `json:"year"`
	Month         time.Month                `json:"month"`
	Contributions []calculator.Contribution `json:"contributions"`
}

// Projector implements stream.Handler.
type Projector struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewProjector migrates the read model tables on db.
func NewProjector(db *sql.DB, lg *logger.Logger) (*Projector, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	p := &Projector{db: db, logger: lg.Named("readside")}
	if err := p.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate read model: %w", err)
	}
	return p, nil
}

func (p *Projector) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contributors (
		region TEXT NOT NULL,
		contributor_id TEXT NOT NULL,
		registration_date TEXT NOT NULL,
		PRIMARY KEY (region, contributor_id)
	);

	CREATE TABLE IF NOT EXISTS contributions (
		region TEXT NOT NULL,
		contributor_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		contributions_json TEXT NOT NULL,
		PRIMARY KEY (region, contributor_id, year, month)
	);
	`
	_, err := p.db.Exec(schema)
	return err
}

// =============================================================================
// PROJECTION
// =============================================================================

// Handle applies one committed event to the tables.
func (p *Projector) Handle(ctx context.Context, env stream.Envelope) error {
	switch e := env.Event.(type) {
	case contributor.Registered:
		return p.registered(ctx, e)
	case contributor.IncomeApplied:
		return p.incomeApplied(ctx, e)
	}
	p.logger.Warn("skipping unknown event", "offset", env.Offset, "type", fmt.Sprintf("%T", env.Event))
	return nil
}

func (p *Projector) registered(ctx context.Context, e contributor.Registered) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO contributors (region, contributor_id, registration_date)
		VALUES (?, ?, ?)
		ON CONFLICT(region, contributor_id) DO UPDATE SET
			registration_date = excluded.registration_date
	`, Region(e.ContributorID), e.ContributorID, income.FormatDate(e.RegistrationDate))
	if err != nil {
		return fmt.Errorf("project registration of %s: %w", e.ContributorID, err)
	}
	return nil
}

func (p *Projector) incomeApplied(ctx context.Context, e contributor.IncomeApplied) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	region := Region(e.ContributorID)
	for month, cs := range e.Contributions {
		// Merge with what earlier events computed for the same month.
		existing, err := p.monthContributions(ctx, tx, region, e.ContributorID, e.Year, month)
		if err != nil {
			return err
		}
		for code, c := range cs {
			existing[code] = c
		}

		data, err := json.Marshal(sorted(existing))
		if err != nil {
			return fmt.Errorf("encode contributions: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contributions (region, contributor_id, year, month, contributions_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(region, contributor_id, year, month) DO UPDATE SET
				contributions_json = excluded.contributions_json
		`, region, e.ContributorID, e.Year, int(month), string(data))
		if err != nil {
			return fmt.Errorf("project %s %d-%02d: %w", e.ContributorID, e.Year, int(month), err)
		}
	}
	return tx.Commit()
}

func (p *Projector) monthContributions(ctx context.Context, tx *sql.Tx, region, id string, year int, month time.Month) (calculator.Contributions, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `
		SELECT contributions_json FROM contributions
		WHERE region = ? AND contributor_id = ? AND year = ? AND month = ?
	`, region, id, year, int(month)).Scan(&raw)
	if err == sql.ErrNoRows {
		return calculator.Contributions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d-%02d: %w", id, year, int(month), err)
	}

	var list []calculator.Contribution
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode %s %d-%02d: %w", id, year, int(month), err)
	}
	out := make(calculator.Contributions, len(list))
	for _, c := range list {
		out[c.Code] = c
	}
	return out, nil
}

func sorted(cs calculator.Contributions) []calculator.Contribution {
	list := make([]calculator.Contribution, 0, len(cs))
	for _, c := range cs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}

// =============================================================================
// QUERIES
// =============================================================================

// Contributors lists registered contributors ordered by region then id.
func (p *Projector) Contributors(ctx context.Context) ([]ContributorRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT region, contributor_id, registration_date
		FROM contributors
		ORDER BY region, contributor_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributors: %w", err)
	}
	defer rows.Close()

	var out []ContributorRow
	for rows.Next() {
		var (
			r    ContributorRow
			date string
		)
		if err := rows.Scan(&r.Region, &r.ContributorID, &date); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		r.RegistrationDate, _ = income.ParseDate(date)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Contributions lists a contributor's months of year in calendar order.
func (p *Projector) Contributions(ctx context.Context, contributorID string, year int) ([]ContributionRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT region, contributor_id, year, month, contributions_json
		FROM contributions
		WHERE region = ? AND contributor_id = ? AND year = ?
		ORDER BY month
	`, Region(contributorID), contributorID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var out []ContributionRow
	for rows.Next() {
		var (
			r     ContributionRow
			month int
			raw   string
		)
		if err := rows.Scan(&r.Region, &r.ContributorID, &r.Year, &month, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		r.Month = time.Month(month)
		if err := json.Unmarshal([]byte(raw), &r.Contributions); err != nil {
			return nil, fmt.Errorf("decode contributions: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
