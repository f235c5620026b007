package postgres

// Schema creates the tables this service owns. The unique key on
// processed_events.event_id is what makes concurrent redeliveries safe.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
    id                 TEXT PRIMARY KEY,
    sku                TEXT UNIQUE NOT NULL,
    name               TEXT NOT NULL,
    review_aggregates  JSONB NOT NULL,
    aggregates_version BIGINT NOT NULL DEFAULT 0,
    inventory          JSONB NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS processed_events (
    event_id   TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
