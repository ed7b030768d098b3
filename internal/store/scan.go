package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/auros/internal/model"
)

const scanStateID = "current"

type scanRow struct {
	ScanID           string       `db:"scan_id"`
	Status           string       `db:"status"`
	Version          int64        `db:"version"`
	StartedAt        sql.NullTime `db:"started_at"`
	CompletedAt      sql.NullTime `db:"completed_at"`
	CompaniesTotal   int          `db:"companies_total"`
	CompaniesStarted int          `db:"companies_started"`
	CompaniesScanned int          `db:"companies_scanned"`
	JobsFound        int          `db:"jobs_found"`
	JobsNew          int          `db:"jobs_new"`
	Errors           string       `db:"errors"`
	CancelRequested  bool         `db:"cancel_requested"`
}

type scanLogRow struct {
	ScanID           string    `db:"scan_id"`
	StartedAt        time.Time `db:"started_at"`
	CompletedAt      time.Time `db:"completed_at"`
	CompaniesScanned int       `db:"companies_scanned"`
	CompaniesSkipped int       `db:"companies_skipped"`
	JobsFound        int       `db:"jobs_found"`
	JobsNew          int       `db:"jobs_new"`
	Errors           string    `db:"errors"`
	Cancelled        bool      `db:"cancelled"`
}

const scanColumns = `scan_id, status, version, started_at, completed_at, companies_total,
	companies_started, companies_scanned, jobs_found, jobs_new, errors, cancel_requested`

func encodeErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("encoding scan errors: %w", err)
	}
	return string(b), nil
}

func decodeErrors(raw string) []string {
	var errs []string
	if raw == "" || json.Unmarshal([]byte(raw), &errs) != nil {
		return nil
	}
	return errs
}

// stale reports whether a running row has outlived the maximum scan duration.
func (s *Store) stale(r scanRow) bool {
	if r.Status != string(model.ScanRunning) || !r.StartedAt.Valid || s.maxScanDuration <= 0 {
		return false
	}
	return s.nowUTC().Sub(r.StartedAt.Time) > s.maxScanDuration
}

func (s *Store) toState(r scanRow) model.ScanState {
	return model.ScanState{
		ScanID:           r.ScanID,
		Status:           model.ScanStatus(r.Status),
		StartedAt:        timePtr(r.StartedAt),
		CompletedAt:      timePtr(r.CompletedAt),
		CompaniesTotal:   r.CompaniesTotal,
		CompaniesScanned: r.CompaniesScanned,
		JobsFound:        r.JobsFound,
		JobsNew:          r.JobsNew,
		Errors:           decodeErrors(r.Errors),
		CancelRequested:  r.CancelRequested,
		Stale:            s.stale(r),
	}
}

func (s *Store) loadScan(ctx context.Context) (scanRow, error) {
	var r scanRow
	err := s.db.GetContext(ctx, &r, s.rebind(`SELECT `+scanColumns+` FROM scan_state WHERE id = ?`), scanStateID)
	if err != nil {
		return scanRow{}, fmt.Errorf("reading scan state: %w", err)
	}
	return r, nil
}

// CurrentStatus returns a snapshot of the current or most recent scan.
func (s *Store) CurrentStatus(ctx context.Context) (model.ScanState, error) {
	r, err := s.loadScan(ctx)
	if err != nil {
		return model.ScanState{}, err
	}
	return s.toState(r), nil
}

// TryBeginScan claims the scan state for a new scan covering total companies.
// The claim is a compare-and-swap on the row version, so of two concurrent
// callers exactly one wins; the other gets model.ErrAlreadyRunning along with
// the snapshot of the scan that is in flight. A stale running row is claimable.
// On success the returned snapshot is the state that was replaced.
func (s *Store) TryBeginScan(ctx context.Context, total int) (model.ScanHandle, model.ScanState, error) {
	r, err := s.loadScan(ctx)
	if err != nil {
		return model.ScanHandle{}, model.ScanState{}, err
	}
	prev := s.toState(r)
	if prev.Running() {
		return model.ScanHandle{}, prev, model.ErrAlreadyRunning
	}

	h := model.ScanHandle{ScanID: uuid.NewString(), StartedAt: s.nowUTC()}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE scan_state SET
			scan_id = ?, status = ?, version = version + 1,
			started_at = ?, completed_at = NULL,
			companies_total = ?, companies_started = 0, companies_scanned = 0,
			jobs_found = 0, jobs_new = 0, errors = '[]', cancel_requested = ?
		WHERE id = ? AND version = ?`),
		h.ScanID, string(model.ScanRunning), h.StartedAt, total, false, scanStateID, r.Version)
	if err != nil {
		return model.ScanHandle{}, prev, fmt.Errorf("claiming scan state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := s.CurrentStatus(ctx)
		if err != nil {
			return model.ScanHandle{}, prev, err
		}
		return model.ScanHandle{}, current, model.ErrAlreadyRunning
	}
	return h, prev, nil
}

// ClaimNextCompany reserves the next company slot of the scan. It returns
// false once cancellation has been requested.
func (s *Store) ClaimNextCompany(ctx context.Context, h model.ScanHandle) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE scan_state
		SET companies_started = companies_started + 1
		WHERE id = ? AND scan_id = ? AND status = ? AND cancel_requested = ?`),
		scanStateID, h.ScanID, string(model.ScanRunning), false)
	if err != nil {
		return false, fmt.Errorf("claiming next company: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	r, err := s.loadScan(ctx)
	if err != nil {
		return false, err
	}
	if r.ScanID != h.ScanID || r.Status != string(model.ScanRunning) {
		return false, model.ErrScanSuperseded
	}
	return false, nil
}

// UpdateProgress writes the running counters and error list of the scan.
func (s *Store) UpdateProgress(ctx context.Context, h model.ScanHandle, p model.Progress) error {
	errs, err := encodeErrors(p.Errors)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE scan_state SET
			companies_scanned = ?, jobs_found = ?, jobs_new = ?, errors = ?
		WHERE id = ? AND scan_id = ? AND status = ?`),
		p.CompaniesScanned, p.JobsFound, p.JobsNew, errs,
		scanStateID, h.ScanID, string(model.ScanRunning))
	if err != nil {
		return fmt.Errorf("updating scan progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrScanSuperseded
	}
	return nil
}

// Complete finishes the scan: final counters go to the scan state and a
// scan log row is appended in the same transaction.
func (s *Store) Complete(ctx context.Context, h model.ScanHandle, p model.Progress, cancelled bool) (model.ScanLog, error) {
	errs, err := encodeErrors(p.Errors)
	if err != nil {
		return model.ScanLog{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.ScanLog{}, fmt.Errorf("completing scan: %w", err)
	}
	defer tx.Rollback()

	completedAt := s.nowUTC()
	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE scan_state SET
			status = ?, version = version + 1, completed_at = ?,
			companies_scanned = ?, jobs_found = ?, jobs_new = ?, errors = ?
		WHERE id = ? AND scan_id = ? AND status = ?`),
		string(model.ScanCompleted), completedAt,
		p.CompaniesScanned, p.JobsFound, p.JobsNew, errs,
		scanStateID, h.ScanID, string(model.ScanRunning))
	if err != nil {
		return model.ScanLog{}, fmt.Errorf("completing scan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ScanLog{}, model.ErrScanSuperseded
	}

	var counts struct {
		Total   int `db:"companies_total"`
		Started int `db:"companies_started"`
	}
	if err := tx.GetContext(ctx, &counts,
		s.rebind(`SELECT companies_total, companies_started FROM scan_state WHERE id = ?`), scanStateID); err != nil {
		return model.ScanLog{}, fmt.Errorf("reading scan counters: %w", err)
	}

	log := model.ScanLog{
		ScanID:           h.ScanID,
		StartedAt:        h.StartedAt.UTC(),
		CompletedAt:      completedAt,
		CompaniesScanned: p.CompaniesScanned,
		CompaniesSkipped: max(counts.Total-counts.Started, 0),
		JobsFound:        p.JobsFound,
		JobsNew:          p.JobsNew,
		Errors:           append([]string(nil), p.Errors...),
		Cancelled:        cancelled,
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO scan_logs
			(scan_id, started_at, completed_at, companies_scanned, companies_skipped, jobs_found, jobs_new, errors, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		log.ScanID, log.StartedAt, log.CompletedAt, log.CompaniesScanned, log.CompaniesSkipped,
		log.JobsFound, log.JobsNew, errs, log.Cancelled,
	); err != nil {
		return model.ScanLog{}, fmt.Errorf("writing scan log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.ScanLog{}, fmt.Errorf("completing scan: %w", err)
	}
	return log, nil
}

// RequestCancellation flags the running scan for cooperative cancellation and
// reports how many companies have not been started yet. With no live scan it
// returns a zero result.
func (s *Store) RequestCancellation(ctx context.Context) (model.CancelResult, error) {
	r, err := s.loadScan(ctx)
	if err != nil {
		return model.CancelResult{}, err
	}
	if !s.toState(r).Running() {
		return model.CancelResult{}, nil
	}

	var remaining int
	err = s.db.QueryRowxContext(ctx, s.rebind(`UPDATE scan_state SET cancel_requested = ?
		WHERE id = ? AND scan_id = ? AND status = ?
		RETURNING companies_total - companies_started`),
		true, scanStateID, r.ScanID, string(model.ScanRunning)).Scan(&remaining)
	if isNoRows(err) {
		// Finished between the read and the update.
		return model.CancelResult{}, nil
	}
	if err != nil {
		return model.CancelResult{}, fmt.Errorf("requesting cancellation: %w", err)
	}
	return model.CancelResult{Cancelled: true, UnitsSkipped: max(remaining, 0)}, nil
}

// ScanLogs returns the most recent scan logs, newest first.
func (s *Store) ScanLogs(ctx context.Context, limit int) ([]model.ScanLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []scanLogRow
	err := s.db.SelectContext(ctx, &rows, s.rebind(`SELECT scan_id, started_at, completed_at,
			companies_scanned, companies_skipped, jobs_found, jobs_new, errors, cancelled
		FROM scan_logs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan logs: %w", err)
	}
	out := make([]model.ScanLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ScanLog{
			ScanID:           r.ScanID,
			StartedAt:        r.StartedAt,
			CompletedAt:      r.CompletedAt,
			CompaniesScanned: r.CompaniesScanned,
			CompaniesSkipped: r.CompaniesSkipped,
			JobsFound:        r.JobsFound,
			JobsNew:          r.JobsNew,
			Errors:           decodeErrors(r.Errors),
			Cancelled:        r.Cancelled,
		})
	}
	return out, nil
}
