// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/gameclient/models"
)

// PostgreSQL 数据库实现（共享归档库，供多台机器上的同一玩家使用）
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS identities (
            token VARCHAR(64) PRIMARY KEY,
            display_name VARCHAR(255) NOT NULL,
            avatar_id VARCHAR(64) NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS room_archives (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            game_kind VARCHAR(32) NOT NULL,
            snapshot TEXT NOT NULL,
            finished_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_room_archives_game_kind ON room_archives(game_kind);
        CREATE INDEX IF NOT EXISTS idx_room_archives_finished_at ON room_archives(finished_at);
    `)

	return err
}

// SaveIdentity 保存玩家身份
func (p *PostgreSQL) SaveIdentity(ident *models.PlayerIdentity) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 使用 UPSERT 操作 (PostgreSQL 9.5+)
	query := `
        INSERT INTO identities (token, display_name, avatar_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (token)
        DO UPDATE SET display_name = $2, avatar_id = $3, updated_at = CURRENT_TIMESTAMP
    `

	_, err := p.db.ExecContext(ctx, query, ident.Token, ident.DisplayName, ident.AvatarID)
	return err
}

// LoadIdentity 加载玩家身份。归档库中每个客户端只保存一条身份记录。
func (p *PostgreSQL) LoadIdentity() (*models.PlayerIdentity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var ident models.PlayerIdentity
	query := `SELECT token, display_name, avatar_id FROM identities ORDER BY updated_at DESC LIMIT 1`
	err := p.db.QueryRowContext(ctx, query).Scan(&ident.Token, &ident.DisplayName, &ident.AvatarID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &ident, nil
}

// SaveRoomArchive 保存已结束房间的归档
func (p *PostgreSQL) SaveRoomArchive(archive *models.RoomArchive) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO room_archives (room_id, game_kind, snapshot, finished_at)
        VALUES ($1, $2, $3, $4)
    `

	_, err := p.db.ExecContext(ctx, query,
		archive.RoomID, string(archive.GameKind), archive.Snapshot, archive.FinishedAt)
	return err
}

// LoadRoomArchives 按游戏类型读取归档
func (p *PostgreSQL) LoadRoomArchives(kind models.GameKind) ([]models.RoomArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT room_id, game_kind, snapshot, finished_at FROM room_archives`
	args := []any{}
	if kind != "" {
		query += ` WHERE game_kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY finished_at`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []models.RoomArchive
	for rows.Next() {
		var a models.RoomArchive
		if err := rows.Scan(&a.RoomID, &a.GameKind, &a.Snapshot, &a.FinishedAt); err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}

	return archives, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
