package journal

// Times are stored as fixed-width UTC text (see timeLayout) so they sort
// and compare correctly with both SQLite drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TEXT NOT NULL,
	strategy TEXT NOT NULL,
	params TEXT NOT NULL,
	dataset TEXT NOT NULL,
	instrument TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	bars INTEGER NOT NULL,
	initial_capital REAL NOT NULL,
	cost_rate REAL NOT NULL,
	periods_per_year INTEGER NOT NULL,
	risk_free_rate REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_return REAL NOT NULL,
	annualized_return REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	win_rate REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	profit_factor REAL NOT NULL,
	best_month REAL NOT NULL,
	worst_month REAL NOT NULL,
	avg_month REAL NOT NULL,
	monthly_std REAL NOT NULL,
	total_cost REAL NOT NULL,
	ruined INTEGER NOT NULL,
	org_path TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time TEXT NOT NULL,
	close_time TEXT NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time TEXT NOT NULL,
	equity REAL NOT NULL,
	position REAL NOT NULL,
	cost REAL NOT NULL,
	close REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);

CREATE TABLE IF NOT EXISTS monthly_returns (
	run_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	ret REAL NOT NULL,
	PRIMARY KEY (run_id, year, month)
);
`
