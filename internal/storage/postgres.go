package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/config"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/syncer"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool    *pgxpool.Pool
	channel string
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool, channel: cfg.Listener.Channel}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates tables and the rule change trigger if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, schemaSQL(s.ListenChannel())); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadRules loads the enabled rule set ordered by priority.
func (s *Store) LoadRules(ctx context.Context) ([]rules.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, enabled, priority, condition_group, actions
		FROM campaign_rules
		WHERE enabled
		ORDER BY priority, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var (
			r             rules.Rule
			group, action []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Enabled, &r.Priority, &group, &action); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if err := decodeRule(&r, group, action); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func decodeRule(r *rules.Rule, group, actions []byte) error {
	if len(group) > 0 {
		if err := json.Unmarshal(group, &r.ConditionGroup); err != nil {
			return fmt.Errorf("rule %s condition_group: %w", r.ID, err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return fmt.Errorf("rule %s actions: %w", r.ID, err)
		}
	}
	return nil
}

// SaveRules upserts rules. The change trigger notifies listeners on commit.
func (s *Store) SaveRules(ctx context.Context, rs []rules.Rule) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	b := &pgx.Batch{}
	for _, r := range rs {
		group, err := json.Marshal(r.ConditionGroup)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		actions, err := json.Marshal(r.Actions)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		b.Queue(`
			INSERT INTO campaign_rules (id, name, enabled, priority, condition_group, actions, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, enabled = EXCLUDED.enabled, priority = EXCLUDED.priority,
				condition_group = EXCLUDED.condition_group, actions = EXCLUDED.actions, updated_at = now()
		`, r.ID, r.Name, r.Enabled, r.Priority, group, actions)
	}
	return s.inTx(ctx, b)
}

// SaveGeneration stores generated campaigns as local state.
func (s *Store) SaveGeneration(ctx context.Context, templateID string, campaigns []model.LocalCampaign) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	b := &pgx.Batch{}
	for _, c := range campaigns {
		data, err := json.Marshal(c.Data)
		if err != nil {
			return fmt.Errorf("encode campaign %s: %w", c.ID, err)
		}
		b.Queue(`
			INSERT INTO local_campaigns (id, template_id, name, status, data, hash)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, status = EXCLUDED.status, data = EXCLUDED.data, hash = EXCLUDED.hash
		`, c.ID, templateID, c.Name, string(c.Status), data, c.Hash)

		for gi, g := range c.AdGroups {
			data, err := json.Marshal(g.Data)
			if err != nil {
				return fmt.Errorf("encode ad group %s: %w", g.ID, err)
			}
			b.Queue(`
				INSERT INTO local_ad_groups (id, campaign_id, position, name, status, data, hash)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					position = EXCLUDED.position, name = EXCLUDED.name, status = EXCLUDED.status,
					data = EXCLUDED.data, hash = EXCLUDED.hash
			`, g.ID, c.ID, gi, g.Name, string(g.Status), data, g.Hash)

			for ai, a := range g.Ads {
				data, err := json.Marshal(a.Data)
				if err != nil {
					return fmt.Errorf("encode ad %s: %w", a.ID, err)
				}
				b.Queue(`
					INSERT INTO local_ads (id, ad_group_id, position, name, status, data, hash)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
					ON CONFLICT (id) DO UPDATE SET
						position = EXCLUDED.position, name = EXCLUDED.name, status = EXCLUDED.status,
						data = EXCLUDED.data, hash = EXCLUDED.hash
				`, a.ID, g.ID, ai, a.Name, string(a.Status), data, a.Hash)
			}
		}
	}
	return s.inTx(ctx, b)
}

// SetCampaignStatus moves a stored campaign and its ad groups and ads to
// status in one transaction. It returns ErrNotFound for an unknown id.
func (s *Store) SetCampaignStatus(ctx context.Context, id string, status model.Status) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE local_campaigns SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update campaign %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `UPDATE local_ad_groups SET status = $2 WHERE campaign_id = $1`, id, string(status)); err != nil {
		return fmt.Errorf("update ad groups of %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE local_ads SET status = $2
		WHERE ad_group_id IN (SELECT id FROM local_ad_groups WHERE campaign_id = $1)
	`, id, string(status)); err != nil {
		return fmt.Errorf("update ads of %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// localRow is one joined campaign/ad group/ad row.
type localRow struct {
	CampaignID, CampaignName, CampaignStatus string
	CampaignData                             []byte
	CampaignHash                             string

	GroupID, GroupName, GroupStatus, GroupHash sql.NullString
	GroupData                                  []byte

	AdID, AdName, AdStatus, AdHash sql.NullString
	AdData                         []byte
}

// LoadLocalState reconstructs every stored campaign hierarchy.
func (s *Store) LoadLocalState(ctx context.Context) ([]model.LocalCampaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.status, c.data, c.hash,
		       g.id, g.name, g.status, g.hash, g.data,
		       a.id, a.name, a.status, a.hash, a.data
		FROM local_campaigns c
		LEFT JOIN local_ad_groups g ON g.campaign_id = c.id
		LEFT JOIN local_ads a ON a.ad_group_id = g.id
		ORDER BY c.created_at, c.id, g.position, a.position
	`)
	if err != nil {
		return nil, fmt.Errorf("query local state: %w", err)
	}
	defer rows.Close()

	var flat []localRow
	for rows.Next() {
		var r localRow
		if err := rows.Scan(
			&r.CampaignID, &r.CampaignName, &r.CampaignStatus, &r.CampaignData, &r.CampaignHash,
			&r.GroupID, &r.GroupName, &r.GroupStatus, &r.GroupHash, &r.GroupData,
			&r.AdID, &r.AdName, &r.AdStatus, &r.AdHash, &r.AdData,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		flat = append(flat, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return assemble(flat)
}

// assemble folds joined rows, already ordered, back into hierarchies.
func assemble(flat []localRow) ([]model.LocalCampaign, error) {
	var out []model.LocalCampaign
	campaignAt := map[string]int{}
	groupAt := map[string]int{}

	for _, r := range flat {
		ci, ok := campaignAt[r.CampaignID]
		if !ok {
			c := model.LocalCampaign{ID: r.CampaignID, Name: r.CampaignName, Status: model.Status(r.CampaignStatus), Hash: r.CampaignHash}
			if err := unmarshalData(r.CampaignData, &c.Data); err != nil {
				return nil, fmt.Errorf("campaign %s: %w", r.CampaignID, err)
			}
			out = append(out, c)
			ci = len(out) - 1
			campaignAt[r.CampaignID] = ci
		}
		if !r.GroupID.Valid {
			continue
		}

		c := &out[ci]
		gi, ok := groupAt[r.GroupID.String]
		if !ok {
			g := model.LocalAdGroup{ID: r.GroupID.String, Name: r.GroupName.String, Status: model.Status(r.GroupStatus.String), Hash: r.GroupHash.String}
			if err := unmarshalData(r.GroupData, &g.Data); err != nil {
				return nil, fmt.Errorf("ad group %s: %w", g.ID, err)
			}
			c.AdGroups = append(c.AdGroups, g)
			gi = len(c.AdGroups) - 1
			groupAt[r.GroupID.String] = gi
		}
		if !r.AdID.Valid {
			continue
		}

		a := model.LocalAd{ID: r.AdID.String, Name: r.AdName.String, Status: model.Status(r.AdStatus.String), Hash: r.AdHash.String}
		if err := unmarshalData(r.AdData, &a.Data); err != nil {
			return nil, fmt.Errorf("ad %s: %w", a.ID, err)
		}
		c.AdGroups[gi].Ads = append(c.AdGroups[gi].Ads, a)
	}
	return out, nil
}

func unmarshalData(b []byte, out any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}

// RecordSyncRun appends a finished run to the sync log.
func (s *Store) RecordSyncRun(ctx context.Context, res syncer.SyncResult, operationCount int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode sync result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sync_runs (run_id, started_at, finished_at, status, operation_count,
		                       executed_count, error_count, rolled_back, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, res.RunID, res.StartedAt, res.FinishedAt, res.Status(), operationCount,
		len(res.Executed), len(res.Errors), res.RolledBack, body)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

func (s *Store) ListenChannel() string {
	if s.channel != "" {
		return s.channel
	}
	return config.DefaultListenChannel
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
