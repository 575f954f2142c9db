package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/papertrader/broker"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordEntry(e Entry) error {
	_, err := j.db.Exec(`
		INSERT INTO ledger
		(seq, kind, order_id, symbol, side, quantity, price, fee, slippage, realized_pl, reason, detail, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Seq, string(e.Kind), e.OrderID, e.Symbol, e.Side.String(),
		e.Quantity, e.Price, e.Fee, e.Slippage, e.RealizedPL,
		string(e.Reason), e.Detail, e.Time.UTC(),
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(m EquityMark) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, equity, realized_pl)
		VALUES (?, ?, ?, ?)`,
		m.Time.UTC(), m.Cash, m.Equity, m.RealizedPL,
	)
	return err
}

// ListEntries returns the full ledger in sequence order, so metrics can
// be recomputed from a persisted journal.
func (j *SQLiteJournal) ListEntries() ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT seq, kind, order_id, symbol, side, quantity, price, fee, slippage, realized_pl, reason, detail, time
		FROM ledger ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind, side, reason string
		if err := rows.Scan(&e.Seq, &kind, &e.OrderID, &e.Symbol, &side,
			&e.Quantity, &e.Price, &e.Fee, &e.Slippage, &e.RealizedPL,
			&reason, &e.Detail, &e.Time); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		e.Reason = broker.RejectReason(reason)
		if side == "sell" {
			e.Side = broker.Sell
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListFillsBetween returns fill entries with Time in [from, to).
func (j *SQLiteJournal) ListFillsBetween(from, to time.Time) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT seq, kind, order_id, symbol, side, quantity, price, fee, slippage, realized_pl, reason, detail, time
		FROM ledger WHERE kind = ? AND time >= ? AND time < ? ORDER BY seq`,
		string(KindFill), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind, side, reason string
		if err := rows.Scan(&e.Seq, &kind, &e.OrderID, &e.Symbol, &side,
			&e.Quantity, &e.Price, &e.Fee, &e.Slippage, &e.RealizedPL,
			&reason, &e.Detail, &e.Time); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		e.Reason = broker.RejectReason(reason)
		if side == "sell" {
			e.Side = broker.Sell
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RejectionCounts returns how many rejections were recorded per reason.
func (j *SQLiteJournal) RejectionCounts() (map[broker.RejectReason]int, error) {
	rows, err := j.db.Query(`
		SELECT reason, COUNT(*) FROM ledger WHERE kind = ? GROUP BY reason`,
		string(KindRejection))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[broker.RejectReason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		counts[broker.RejectReason(reason)] = n
	}
	return counts, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
