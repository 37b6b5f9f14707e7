package storage

import (
	"fmt"
	"strings"
)

func schemaSQL(channel string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS campaign_rules (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	enabled         BOOLEAN NOT NULL DEFAULT TRUE,
	priority        INTEGER NOT NULL DEFAULT 0,
	condition_group JSONB NOT NULL DEFAULT '{}',
	actions         JSONB NOT NULL DEFAULT '[]',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS local_campaigns (
	id          TEXT PRIMARY KEY,
	template_id TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	data        JSONB NOT NULL,
	hash        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS local_ad_groups (
	id          TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES local_campaigns (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	data        JSONB NOT NULL,
	hash        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS local_ads (
	id          TEXT PRIMARY KEY,
	ad_group_id TEXT NOT NULL REFERENCES local_ad_groups (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	data        JSONB NOT NULL,
	hash        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	run_id          TEXT PRIMARY KEY,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL,
	operation_count INTEGER NOT NULL,
	executed_count  INTEGER NOT NULL,
	error_count     INTEGER NOT NULL,
	rolled_back     BOOLEAN NOT NULL,
	result          JSONB NOT NULL
);

CREATE OR REPLACE FUNCTION notify_campaign_rules_changed() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('%[1]s', TG_OP);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS campaign_rules_changed ON campaign_rules;
CREATE TRIGGER campaign_rules_changed
	AFTER INSERT OR UPDATE OR DELETE ON campaign_rules
	FOR EACH STATEMENT EXECUTE FUNCTION notify_campaign_rules_changed();
`, strings.ReplaceAll(channel, "'", "''"))
}
