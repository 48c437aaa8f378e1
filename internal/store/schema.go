package store

// schemaVersionV1 stores calibration runs and their fits only.
const schemaVersionV1 = 1

// schemaVersionV2 adds run kinds, data sources and grid surfaces.
const schemaVersionV2 = 2

// schemaV1 is the original DDL (kept for migration tests).
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	objective TEXT NOT NULL,
	families TEXT NOT NULL,
	trials INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fits (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	family TEXT NOT NULL,
	regime TEXT NOT NULL,
	scale REAL NOT NULL,
	growth REAL NOT NULL,
	compression REAL NOT NULL,
	loss REAL,
	pearson REAL,
	mse REAL,
	std REAL,
	centrality REAL,
	pearson_reg REAL,
	evaluations INTEGER NOT NULL,
	status TEXT,
	PRIMARY KEY (run_id, position)
);
`

// gridTables are shared by the fresh install and the v1 migration.
const gridTables = `
CREATE TABLE IF NOT EXISTS grid_points (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	scale REAL NOT NULL,
	growth REAL NOT NULL,
	compression REAL NOT NULL,
	loss REAL,
	PRIMARY KEY (run_id, idx)
);
CREATE TABLE IF NOT EXISTS grid_losses (
	run_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	family TEXT NOT NULL,
	loss REAL,
	PRIMARY KEY (run_id, idx, family),
	FOREIGN KEY (run_id, idx) REFERENCES grid_points(run_id, idx) ON DELETE CASCADE
);
`

// schemaV2 is the fresh-install DDL.
var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL DEFAULT 'calibrate',
	mode TEXT NOT NULL,
	objective TEXT NOT NULL,
	families TEXT NOT NULL,
	trials INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	elapsed_ms INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fits (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	family TEXT NOT NULL,
	regime TEXT NOT NULL,
	scale REAL NOT NULL,
	growth REAL NOT NULL,
	compression REAL NOT NULL,
	loss REAL,
	pearson REAL,
	mse REAL,
	std REAL,
	centrality REAL,
	pearson_reg REAL,
	evaluations INTEGER NOT NULL,
	status TEXT,
	PRIMARY KEY (run_id, position)
);
` + gridTables

// migrationV1ToV2 upgrades a v1 database in place.
var migrationV1ToV2 = `
ALTER TABLE runs ADD COLUMN kind TEXT NOT NULL DEFAULT 'calibrate';
ALTER TABLE runs ADD COLUMN source TEXT NOT NULL DEFAULT '';
` + gridTables + `
UPDATE schema_version SET version = 2;
`
