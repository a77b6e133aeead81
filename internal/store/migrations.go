package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    started_at   DATETIME NOT NULL,
    status       TEXT NOT NULL,
    stats        TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS clusters (
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    cluster_id  TEXT NOT NULL,
    score       REAL NOT NULL DEFAULT 0,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    size        INTEGER NOT NULL DEFAULT 0,
    main        INTEGER NOT NULL DEFAULT 0,
    sources     TEXT NOT NULL DEFAULT '[]',
    items       TEXT NOT NULL DEFAULT '[]',
    alerted     BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, cluster_id)
);

CREATE INDEX IF NOT EXISTS idx_clusters_score ON clusters(score);
`
