package journal

const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	sequence INTEGER NOT NULL,
	action TEXT NOT NULL,
	symbol TEXT NOT NULL,
	underlying TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	fees TEXT NOT NULL,
	amount TEXT NOT NULL,
	description TEXT NOT NULL,
	source TEXT NOT NULL,
	order_id TEXT NOT NULL,
	related_id TEXT NOT NULL,
	imported_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	strategy TEXT NOT NULL,
	underlyings TEXT NOT NULL,
	opened_at DATETIME NOT NULL,
	closed_at DATETIME,
	realized_pnl TEXT NOT NULL,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS import_runs (
	id TEXT PRIMARY KEY,
	file TEXT NOT NULL,
	source TEXT NOT NULL,
	archive TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	parsed INTEGER NOT NULL,
	ignored INTEGER NOT NULL,
	imported INTEGER NOT NULL,
	duplicates INTEGER NOT NULL,
	rejected INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_time ON transactions(time);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_opened ON positions(opened_at);
`

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	time TIMESTAMPTZ NOT NULL,
	sequence INTEGER NOT NULL,
	action TEXT NOT NULL,
	symbol TEXT NOT NULL,
	underlying TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	fees TEXT NOT NULL,
	amount TEXT NOT NULL,
	description TEXT NOT NULL,
	source TEXT NOT NULL,
	order_id TEXT NOT NULL,
	related_id TEXT NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	strategy TEXT NOT NULL,
	underlyings TEXT NOT NULL,
	opened_at TIMESTAMPTZ NOT NULL,
	closed_at TIMESTAMPTZ,
	realized_pnl TEXT NOT NULL,
	doc JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS import_runs (
	id TEXT PRIMARY KEY,
	file TEXT NOT NULL,
	source TEXT NOT NULL,
	archive TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	parsed INTEGER NOT NULL,
	ignored INTEGER NOT NULL,
	imported INTEGER NOT NULL,
	duplicates INTEGER NOT NULL,
	rejected INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_time ON transactions(time);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_opened ON positions(opened_at);
`
