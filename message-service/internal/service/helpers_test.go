package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/message-service/internal/cache"
	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/idgen"
	"github.com/weiawesome/wes-io-live/message-service/internal/repository"
	"github.com/weiawesome/wes-io-live/pkg/database"
)

var (
	alice = domain.Actor{ID: "alice", Role: domain.RoleUser}
	bob   = domain.Actor{ID: "bob", Role: domain.RoleUser}
	carol = domain.Actor{ID: "carol", Role: domain.RoleUser}
	mod   = domain.Actor{ID: "mod", Role: domain.RoleModerator}
	admin = domain.Actor{ID: "root", Role: domain.RoleAdmin}
)

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (r *fakeRevoker) RevokeUserTokens(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, userID)
}

type fixture struct {
	db      *gorm.DB
	mr      *miniredis.Miniredis
	svc     MessageService
	revoker *fakeRevoker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ids := idgen.NewUUIDGenerator()
	revoker := &fakeRevoker{}
	svc := NewMessageService(
		repository.NewGormMessageRepository(db, ids),
		repository.NewGormUnreadIndex(db),
		repository.NewGormNotificationRepository(db),
		cache.NewViewCache(cache.NewRedisResponseCache(client, "message"), cache.DefaultTTL),
		revoker,
	)

	return &fixture{db: db, mr: mr, svc: svc, revoker: revoker}
}

func (f *fixture) send(t *testing.T, from, to domain.Actor, content string, parent *domain.Message) *domain.Message {
	t.Helper()
	req := &domain.CreateMessageRequest{ReceiverID: to.ID, Content: content}
	if parent != nil {
		pid := parent.ID
		req.ParentID = &pid
	}
	msg, err := f.svc.CreateMessage(t.Context(), from, req)
	require.NoError(t, err)
	return msg
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func key(kind cache.ViewKind, owner string) string {
	return fmt.Sprintf("message:%s:%s", kind, owner)
}
