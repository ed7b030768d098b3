package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/auros/internal/model"
)

type companyRow struct {
	ID           string       `db:"id"`
	Name         string       `db:"name"`
	CareersURL   string       `db:"careers_url"`
	Tier         int          `db:"tier"`
	Enabled      bool         `db:"enabled"`
	LastScraped  sql.NullTime `db:"last_scraped"`
	ScrapeStatus string       `db:"scrape_status"`
}

func (r companyRow) toModel() model.Company {
	return model.Company{
		ID:           r.ID,
		Name:         r.Name,
		CareersURL:   r.CareersURL,
		Tier:         r.Tier,
		Enabled:      r.Enabled,
		LastScraped:  timePtr(r.LastScraped),
		ScrapeStatus: model.ScrapeOutcome(r.ScrapeStatus),
	}
}

const companyColumns = `id, name, careers_url, tier, enabled, last_scraped, scrape_status`

// SeedCompanies inserts the configured companies. Existing rows get their
// name, URL and tier refreshed; the enabled flag and health fields are left
// alone so management changes survive a restart.
func (s *Store) SeedCompanies(ctx context.Context, companies []model.Company) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seeding companies: %w", err)
	}
	defer tx.Rollback()

	q := s.rebind(`INSERT INTO companies (id, name, careers_url, tier, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			careers_url = excluded.careers_url,
			tier = excluded.tier`)
	for _, c := range companies {
		if _, err := tx.ExecContext(ctx, q, c.ID, c.Name, c.CareersURL, c.Tier, c.Enabled); err != nil {
			return fmt.Errorf("seeding company %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListCompanies returns every company ordered by tier, then id.
func (s *Store) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return s.selectCompanies(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY tier, id`)
}

// EnabledCompanies returns the companies a scan should visit.
func (s *Store) EnabledCompanies(ctx context.Context) ([]model.Company, error) {
	return s.selectCompanies(ctx, s.rebind(`SELECT `+companyColumns+` FROM companies WHERE enabled = ? ORDER BY tier, id`), true)
}

func (s *Store) selectCompanies(ctx context.Context, q string, args ...any) ([]model.Company, error) {
	var rows []companyRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	out := make([]model.Company, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// SetCompanyEnabled toggles a company. Unknown ids return model.ErrNotFound.
func (s *Store) SetCompanyEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE companies SET enabled = ? WHERE id = ?`), enabled, id)
	if err != nil {
		return fmt.Errorf("updating company %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("company %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// RecordScrape stores the outcome of a scrape. last_scraped only moves on success.
func (s *Store) RecordScrape(ctx context.Context, companyID string, outcome model.ScrapeOutcome, at time.Time) error {
	var err error
	if outcome == model.ScrapeSuccess {
		_, err = s.db.ExecContext(ctx,
			s.rebind(`UPDATE companies SET scrape_status = ?, last_scraped = ? WHERE id = ?`),
			string(outcome), at.UTC(), companyID)
	} else {
		_, err = s.db.ExecContext(ctx,
			s.rebind(`UPDATE companies SET scrape_status = ? WHERE id = ?`),
			string(outcome), companyID)
	}
	if err != nil {
		return fmt.Errorf("recording scrape for %s: %w", companyID, err)
	}
	return nil
}
