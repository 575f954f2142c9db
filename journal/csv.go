package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	ledger *csv.Writer
	equity *csv.Writer
	lf, ef *os.File
}

func NewCSV(ledgerPath, equityPath string) (*CSVJournal, error) {
	lf, err := os.Create(ledgerPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		lf.Close()
		return nil, err
	}

	lw := csv.NewWriter(lf)
	ew := csv.NewWriter(ef)

	if err := lw.Write([]string{"seq", "kind", "order_id", "symbol", "side", "quantity", "price", "fee", "slippage", "realized_pl", "reason", "detail", "time"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "cash", "equity", "realized_pl"}); err != nil {
		return nil, err
	}

	lw.Flush()
	if err := lw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{ledger: lw, equity: ew, lf: lf, ef: ef}, nil
}

func (j *CSVJournal) RecordEntry(e Entry) error {
	err := j.ledger.Write([]string{
		strconv.Itoa(e.Seq),
		string(e.Kind),
		e.OrderID,
		e.Symbol,
		e.Side.String(),
		f(e.Quantity),
		f(e.Price),
		f(e.Fee),
		f(e.Slippage),
		f(e.RealizedPL),
		string(e.Reason),
		e.Detail,
		e.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	j.ledger.Flush()
	return j.ledger.Error()
}

func (j *CSVJournal) RecordEquity(m EquityMark) error {
	err := j.equity.Write([]string{
		m.Time.UTC().Format(time.RFC3339Nano),
		f(m.Cash),
		f(m.Equity),
		f(m.RealizedPL),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.ledger.Flush()
	j.equity.Flush()
	err1 := j.lf.Close()
	err2 := j.ef.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
