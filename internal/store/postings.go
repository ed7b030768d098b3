package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/auros/internal/model"
)

type postingRow struct {
	ID               string          `db:"id"`
	CompanyID        string          `db:"company_id"`
	Title            string          `db:"title"`
	PrimaryFunction  string          `db:"primary_function"`
	URL              string          `db:"url"`
	YOEMin           sql.NullInt64   `db:"yoe_min"`
	YOEMax           sql.NullInt64   `db:"yoe_max"`
	YOESource        string          `db:"yoe_source"`
	SalaryMin        sql.NullInt64   `db:"salary_min"`
	SalaryMax        sql.NullInt64   `db:"salary_max"`
	SalarySource     string          `db:"salary_source"`
	SalaryConfidence sql.NullFloat64 `db:"salary_confidence"`
	WorkMode         string          `db:"work_mode"`
	Location         string          `db:"location"`
	MatchScore       float64         `db:"match_score"`
	RawDescription   string          `db:"raw_description"`
	Status           string          `db:"status"`
	FirstSeen        time.Time       `db:"first_seen"`
	LastSeen         time.Time       `db:"last_seen"`
	Notified         bool            `db:"notified"`
}

const postingColumns = `id, company_id, title, primary_function, url,
	yoe_min, yoe_max, yoe_source, salary_min, salary_max, salary_source, salary_confidence,
	work_mode, location, match_score, raw_description, status, first_seen, last_seen, notified`

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (r postingRow) toModel() model.Posting {
	p := model.Posting{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		Title:           r.Title,
		PrimaryFunction: r.PrimaryFunction,
		URL:             r.URL,
		YOEMin:          intPtr(r.YOEMin),
		YOEMax:          intPtr(r.YOEMax),
		YOESource:       r.YOESource,
		SalaryMin:       intPtr(r.SalaryMin),
		SalaryMax:       intPtr(r.SalaryMax),
		SalarySource:    r.SalarySource,
		WorkMode:        model.WorkMode(r.WorkMode),
		Location:        r.Location,
		MatchScore:      r.MatchScore,
		RawDescription:  r.RawDescription,
		Status:          model.PostingStatus(r.Status),
		FirstSeen:       r.FirstSeen,
		LastSeen:        r.LastSeen,
		Notified:        r.Notified,
	}
	if r.SalaryConfidence.Valid {
		c := r.SalaryConfidence.Float64
		p.SalaryConfidence = &c
	}
	return p
}

// PostingByURL looks a posting up by its canonical URL.
func (s *Store) PostingByURL(ctx context.Context, url string) (model.Posting, error) {
	var row postingRow
	err := s.db.GetContext(ctx, &row, s.rebind(`SELECT `+postingColumns+` FROM postings WHERE url = ?`), url)
	if isNoRows(err) {
		return model.Posting{}, model.ErrNotFound
	}
	if err != nil {
		return model.Posting{}, fmt.Errorf("looking up posting %s: %w", url, err)
	}
	return row.toModel(), nil
}

// InsertPosting writes a new posting. A missing ID is generated, empty status
// defaults to new and zero timestamps default to now. If the URL is already
// stored the row is left untouched and model.ErrPostingExists is returned.
func (s *Store) InsertPosting(ctx context.Context, p *model.Posting) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.StatusNew
	}
	if p.WorkMode == "" {
		p.WorkMode = model.WorkModeUnclear
	}
	now := s.nowUTC()
	if p.FirstSeen.IsZero() {
		p.FirstSeen = now
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = p.FirstSeen
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO postings (`+postingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING`),
		p.ID, p.CompanyID, p.Title, p.PrimaryFunction, p.URL,
		nullInt(p.YOEMin), nullInt(p.YOEMax), p.YOESource,
		nullInt(p.SalaryMin), nullInt(p.SalaryMax), p.SalarySource, nullFloat(p.SalaryConfidence),
		string(p.WorkMode), p.Location, p.MatchScore, p.RawDescription, string(p.Status),
		p.FirstSeen.UTC(), p.LastSeen.UTC(), p.Notified,
	)
	if err != nil {
		return fmt.Errorf("inserting posting %s: %w", p.URL, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrPostingExists
	}
	return nil
}

// TouchPosting records a re-sighting: last_seen and match_score are updated
// and an empty raw description is filled in. Status, first_seen and notified
// are never touched.
func (s *Store) TouchPosting(ctx context.Context, id string, seenAt time.Time, score float64, rawText string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE postings SET
			last_seen = ?,
			match_score = ?,
			raw_description = CASE WHEN raw_description = '' THEN ? ELSE raw_description END
		WHERE id = ?`),
		seenAt.UTC(), score, rawText, id)
	if err != nil {
		return fmt.Errorf("touching posting %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("posting %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// MarkNotified flips notified from false to true. It reports whether this
// call made the change.
func (s *Store) MarkNotified(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE postings SET notified = ? WHERE id = ? AND notified = ?`), true, id, false)
	if err != nil {
		return false, fmt.Errorf("marking posting %s notified: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SetPostingStatus applies a user triage status.
func (s *Store) SetPostingStatus(ctx context.Context, id string, status model.PostingStatus) error {
	switch status {
	case model.StatusNew, model.StatusBookmarked, model.StatusApplied, model.StatusHidden:
	default:
		return fmt.Errorf("unknown posting status %q", status)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE postings SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("updating posting %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("posting %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// PostingFilter narrows ListPostings. Zero values mean no constraint.
type PostingFilter struct {
	CompanyID string
	Status    model.PostingStatus
	MinScore  float64
	Limit     int
}

// ListPostings returns postings ordered by score, best first.
func (s *Store) ListPostings(ctx context.Context, f PostingFilter) ([]model.Posting, error) {
	var (
		where []string
		args  []any
	)
	if f.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MinScore > 0 {
		where = append(where, "match_score >= ?")
		args = append(args, f.MinScore)
	}

	q := `SELECT ` + postingColumns + ` FROM postings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY match_score DESC, first_seen DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []postingRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	out := make([]model.Posting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
