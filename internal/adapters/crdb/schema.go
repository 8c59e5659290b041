package crdb

import "context"

// Schema is applied at startup by the binaries that own the ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS bookings (
	kind STRING NOT NULL,
	reservation_id INT8 NOT NULL,
	unit_id INT8 NOT NULL,
	hotel_id INT8,
	guest STRING NOT NULL,
	email STRING NOT NULL,
	status STRING NOT NULL CHECK (status IN ('en attente', 'confirmée', 'annulée', 'terminée')),
	payment STRING NOT NULL,
	total DECIMAL(14,2) NOT NULL,
	start_date DATE,
	reminded_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, reservation_id),
	INDEX bookings_due_idx (status, start_date) WHERE reminded_at IS NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type STRING NOT NULL,
	aggregate_id STRING NOT NULL,
	event_type STRING NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status STRING NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	attempts INT4 NOT NULL DEFAULT 0,
	dedupe_key STRING NOT NULL UNIQUE,
	INDEX outbox_new_idx (status, created_at)
);
`

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}
