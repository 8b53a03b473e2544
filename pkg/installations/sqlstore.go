package installations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	_ "github.com/mattn/go-sqlite3" // SQLite driver.
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type installationRecord struct {
	bun.BaseModel `bun:"table:slack_installations,alias:si"`

	ID                  int64     `bun:"id,pk,autoincrement"`
	AppID               string    `bun:"app_id,notnull"`
	EnterpriseID        string    `bun:"enterprise_id,notnull"`
	EnterpriseName      string    `bun:"enterprise_name,notnull"`
	TeamID              string    `bun:"team_id,notnull"`
	TeamName            string    `bun:"team_name,notnull"`
	IsEnterpriseInstall bool      `bun:"is_enterprise_install,notnull"`
	TokenType           string    `bun:"token_type,notnull"`
	BotToken            string    `bun:"bot_token,notnull"`
	BotID               string    `bun:"bot_id,notnull"`
	BotUserID           string    `bun:"bot_user_id,notnull"`
	BotScopes           string    `bun:"bot_scopes,notnull"`
	UserID              string    `bun:"user_id,notnull"`
	UserToken           string    `bun:"user_token,notnull"`
	UserScopes          string    `bun:"user_scopes,notnull"`
	InstalledAt         time.Time `bun:"installed_at,notnull"`
}

type stateRecord struct {
	bun.BaseModel `bun:"table:slack_oauth_states,alias:sos"`

	State    string `bun:"state,pk"`
	ExpireAt int64  `bun:"expire_at,notnull"`
}

// SQLStore implements both [Store] and [StateStore] on top of SQLite. Installations are
// appended as history rows, so lookups always return the latest matching row.
type SQLStore struct {
	db         *bun.DB
	expiration time.Duration
	now        func() time.Time
}

// OpenSQLite opens (or creates) a SQLite database with the given DSN, e.g.
// a file path or "file:name?mode=memory&cache=shared", and prepares its tables.
func OpenSQLite(ctx context.Context, dsn string, stateExpiration time.Duration) (*SQLStore, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s, err := NewSQLStore(ctx, bun.NewDB(sqlDB, sqlitedialect.New()), stateExpiration)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing bun database, and creates the store's tables if needed.
func NewSQLStore(ctx context.Context, db *bun.DB, stateExpiration time.Duration) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("bun DB is required")
	}
	if stateExpiration <= 0 {
		stateExpiration = DefaultStateExpiration
	}

	models := []any{(*installationRecord)(nil), (*stateRecord)(nil)}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return &SQLStore{db: db, expiration: stateExpiration, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, i *Installation) error {
	r := newInstallationRecord(i)
	if r.InstalledAt.IsZero() {
		r.InstalledAt = s.now().UTC()
	}

	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("failed to save installation: %w", err)
	}
	return nil
}

func (s *SQLStore) FindBot(ctx context.Context, enterpriseID, teamID string, isEnterpriseInstall bool) (*Bot, error) {
	i, err := s.FindInstallation(ctx, enterpriseID, teamID, "", isEnterpriseInstall)
	if err != nil || i == nil {
		return nil, err
	}
	if i.BotToken == "" {
		return nil, nil
	}
	return i.Bot(), nil
}

func (s *SQLStore) FindInstallation(ctx context.Context, enterpriseID, teamID, userID string, isEnterpriseInstall bool) (*Installation, error) {
	if isEnterpriseInstall {
		teamID = ""
	}

	r := new(installationRecord)
	q := s.db.NewSelect().Model(r).
		Where("enterprise_id = ?", enterpriseID).
		Where("team_id = ?", teamID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	err := q.OrderExpr("id DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find installation: %w", err)
	}

	return r.toInstallation(), nil
}

func (s *SQLStore) DeleteBot(ctx context.Context, enterpriseID, teamID string) error {
	_, err := s.db.NewUpdate().Model((*installationRecord)(nil)).
		Set("bot_token = ''").Set("bot_id = ''").Set("bot_user_id = ''").Set("bot_scopes = ''").
		Where("enterprise_id = ?", enterpriseID).
		Where("team_id = ?", teamID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteInstallation(ctx context.Context, enterpriseID, teamID, userID string) error {
	q := s.db.NewDelete().Model((*installationRecord)(nil)).
		Where("enterprise_id = ?", enterpriseID).
		Where("team_id = ?", teamID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}
	return nil
}

func (s *SQLStore) Issue(ctx context.Context) (string, error) {
	r := &stateRecord{
		State:    shortuuid.New(),
		ExpireAt: s.now().Add(s.expiration).Unix(),
	}
	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to save OAuth state: %w", err)
	}
	return r.State, nil
}

func (s *SQLStore) Consume(ctx context.Context, state string) (bool, error) {
	res, err := s.db.NewDelete().Model((*stateRecord)(nil)).
		Where("state = ?", state).
		Where("expire_at > ?", s.now().Unix()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to consume OAuth state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to consume OAuth state: %w", err)
	}

	// Expired leftovers are useless, even if they weren't the one we got.
	_, _ = s.db.NewDelete().Model((*stateRecord)(nil)).Where("expire_at <= ?", s.now().Unix()).Exec(ctx)

	return n == 1, nil
}

func newInstallationRecord(i *Installation) *installationRecord {
	teamID := i.TeamID
	if i.IsEnterpriseInstall {
		teamID = ""
	}

	return &installationRecord{
		AppID:               i.AppID,
		EnterpriseID:        i.EnterpriseID,
		EnterpriseName:      i.EnterpriseName,
		TeamID:              teamID,
		TeamName:            i.TeamName,
		IsEnterpriseInstall: i.IsEnterpriseInstall,
		TokenType:           i.TokenType,
		BotToken:            i.BotToken,
		BotID:               i.BotID,
		BotUserID:           i.BotUserID,
		BotScopes:           strings.Join(i.BotScopes, ","),
		UserID:              i.UserID,
		UserToken:           i.UserToken,
		UserScopes:          strings.Join(i.UserScopes, ","),
		InstalledAt:         i.InstalledAt.UTC(),
	}
}

func (r *installationRecord) toInstallation() *Installation {
	return &Installation{
		AppID:               r.AppID,
		EnterpriseID:        r.EnterpriseID,
		EnterpriseName:      r.EnterpriseName,
		TeamID:              r.TeamID,
		TeamName:            r.TeamName,
		IsEnterpriseInstall: r.IsEnterpriseInstall,
		TokenType:           r.TokenType,
		BotToken:            r.BotToken,
		BotID:               r.BotID,
		BotUserID:           r.BotUserID,
		BotScopes:           splitScopes(r.BotScopes),
		UserID:              r.UserID,
		UserToken:           r.UserToken,
		UserScopes:          splitScopes(r.UserScopes),
		InstalledAt:         r.InstalledAt,
	}
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
