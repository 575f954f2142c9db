// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS ledger (
	seq INTEGER PRIMARY KEY,
	kind TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	fee REAL NOT NULL,
	slippage REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL,
	detail TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_symbol ON ledger(symbol);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
