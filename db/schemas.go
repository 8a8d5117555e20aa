package db

var schema = `
CREATE TABLE IF NOT EXISTS ticket_events (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	price BIGINT NOT NULL CHECK (price >= 0),
	total_tickets INT NOT NULL CHECK (total_tickets > 0),
	tickets_sold INT NOT NULL DEFAULT 0 CHECK (tickets_sold >= 0 AND tickets_sold <= total_tickets),
	active BOOLEAN NOT NULL DEFAULT TRUE,
	organizer CHAR(42) NOT NULL,
	soul_bound BOOLEAN NOT NULL DEFAULT FALSE,
	revenue BIGINT NOT NULL DEFAULT 0 CHECK (revenue >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tickets (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	event_id BIGINT NOT NULL REFERENCES ticket_events (id),
	owner CHAR(42) NOT NULL,
	metadata_uri TEXT NOT NULL,
	checked_in_at BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS tickets_event_id_idx ON tickets (event_id);

CREATE TABLE IF NOT EXISTS listings (
	ticket_id BIGINT PRIMARY KEY REFERENCES tickets (id),
	seller CHAR(42) NOT NULL,
	price BIGINT NOT NULL CHECK (price >= 0),
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS payouts (
	address CHAR(42) PRIMARY KEY,
	balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS events (
	event_id UUID PRIMARY KEY,
	published_at TIMESTAMP NOT NULL,
	event_name VARCHAR(255) NOT NULL,
	event_payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS read_model_event_stats (
	event_id BIGINT PRIMARY KEY,
	payload JSONB NOT NULL
);
`
