// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/gameclient/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// 定义GORM模型
type IdentityModel struct {
	Token       string `gorm:"primaryKey"`
	DisplayName string `gorm:"not null"`
	AvatarID    string `gorm:"not null"`
	UpdatedAt   time.Time
}

type RoomArchiveModel struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     string `gorm:"index;not null"`
	GameKind   string `gorm:"index;not null"`
	Snapshot   string `gorm:"type:text;not null"`
	FinishedAt time.Time
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&IdentityModel{}, &RoomArchiveModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveIdentity 保存玩家身份
func (p *GormPostgreSQL) SaveIdentity(ident *models.PlayerIdentity) error {
	model := IdentityModel{
		Token:       ident.Token,
		DisplayName: ident.DisplayName,
		AvatarID:    ident.AvatarID,
		UpdatedAt:   time.Now(),
	}
	return p.db.Save(&model).Error
}

// LoadIdentity 加载玩家身份
func (p *GormPostgreSQL) LoadIdentity() (*models.PlayerIdentity, error) {
	var model IdentityModel
	if err := p.db.Order("updated_at DESC").First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.PlayerIdentity{
		Token:       model.Token,
		DisplayName: model.DisplayName,
		AvatarID:    model.AvatarID,
	}, nil
}

// SaveRoomArchive 保存已结束房间的归档
func (p *GormPostgreSQL) SaveRoomArchive(archive *models.RoomArchive) error {
	model := RoomArchiveModel{
		RoomID:     archive.RoomID,
		GameKind:   string(archive.GameKind),
		Snapshot:   archive.Snapshot,
		FinishedAt: archive.FinishedAt,
	}
	return p.db.Create(&model).Error
}

// LoadRoomArchives 按游戏类型读取归档
func (p *GormPostgreSQL) LoadRoomArchives(kind models.GameKind) ([]models.RoomArchive, error) {
	var rows []RoomArchiveModel
	query := p.db.Order("finished_at")
	if kind != "" {
		query = query.Where("game_kind = ?", string(kind))
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	archives := make([]models.RoomArchive, 0, len(rows))
	for _, row := range rows {
		archives = append(archives, models.RoomArchive{
			RoomID:     row.RoomID,
			GameKind:   models.GameKind(row.GameKind),
			Snapshot:   row.Snapshot,
			FinishedAt: row.FinishedAt,
		})
	}
	return archives, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
