package postgres

// migrations are applied in order by Migrate. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id               UUID PRIMARY KEY,
		name             TEXT NOT NULL,
		category         TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		email            TEXT NOT NULL DEFAULT '',
		phone            TEXT NOT NULL DEFAULT '',
		address          TEXT NOT NULL DEFAULT '',
		city             TEXT NOT NULL DEFAULT '',
		image            TEXT NOT NULL DEFAULT '',
		owner_id         TEXT NULL,
		is_admin_listing BOOLEAN NOT NULL DEFAULT FALSE,
		average_rating   DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_ratings    INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS listings_owner_unique
		ON listings (owner_id) WHERE owner_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS listings_created_at_idx ON listings (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id          UUID PRIMARY KEY,
		seq         BIGSERIAL,
		business_id UUID NOT NULL REFERENCES listings (id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		user_name   TEXT NOT NULL DEFAULT '',
		score       SMALLINT NOT NULL CHECK (score BETWEEN 1 AND 5),
		comment     TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (business_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ratings_business_seq_idx ON ratings (business_id, seq)`,
}
