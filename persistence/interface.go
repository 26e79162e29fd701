// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/gameclient/models"
)

// Store 本地持久化接口。只有身份信息和已结束房间的归档会被持久化，
// 其余影子状态在重连后由服务端推送重建。
type Store interface {
	SaveIdentity(ident *models.PlayerIdentity) error
	LoadIdentity() (*models.PlayerIdentity, error)
	SaveRoomArchive(archive *models.RoomArchive) error
	LoadRoomArchives(kind models.GameKind) ([]models.RoomArchive, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
