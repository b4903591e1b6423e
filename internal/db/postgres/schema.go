package postgres

// Catalog schema: one dataset table plus one search table per index kind.
// Scalar values are stored as degenerate closed ranges so point and range
// predicates translate uniformly to && and @>.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS dataset (
    id       uuid PRIMARY KEY,
    product  text NOT NULL,
    metadata jsonb NOT NULL,
    archived boolean NOT NULL DEFAULT false,
    added    timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS ix_dataset_product ON dataset (product);

CREATE TABLE IF NOT EXISTS search_string (
    dataset_ref uuid NOT NULL REFERENCES dataset (id) ON DELETE CASCADE,
    search_key  text NOT NULL,
    value       text NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_search_string_kv ON search_string (search_key, value);
CREATE INDEX IF NOT EXISTS ix_search_string_ref ON search_string (dataset_ref);

CREATE TABLE IF NOT EXISTS search_numeric (
    dataset_ref uuid NOT NULL REFERENCES dataset (id) ON DELETE CASCADE,
    search_key  text NOT NULL,
    value       numrange NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_search_numeric_value ON search_numeric USING gist (value);
CREATE INDEX IF NOT EXISTS ix_search_numeric_ref ON search_numeric (dataset_ref);

CREATE TABLE IF NOT EXISTS search_datetime (
    dataset_ref uuid NOT NULL REFERENCES dataset (id) ON DELETE CASCADE,
    search_key  text NOT NULL,
    value       tstzrange NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_search_datetime_value ON search_datetime USING gist (value);
CREATE INDEX IF NOT EXISTS ix_search_datetime_ref ON search_datetime (dataset_ref);
`
