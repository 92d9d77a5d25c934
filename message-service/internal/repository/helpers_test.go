package repository

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/idgen"
	"github.com/weiawesome/wes-io-live/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// stepClock advances by one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fixture struct {
	db            *gorm.DB
	messages      *GormMessageRepository
	unread        *GormUnreadIndex
	notifications *GormNotificationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	messages := NewGormMessageRepository(db, idgen.NewUUIDGenerator())
	messages.now = newStepClock().Now
	return &fixture{
		db:            db,
		messages:      messages,
		unread:        NewGormUnreadIndex(db),
		notifications: NewGormNotificationRepository(db),
	}
}

func (f *fixture) send(t *testing.T, from, to, content string, parent *domain.Message) *domain.Message {
	t.Helper()
	msg := &domain.Message{SenderID: from, ReceiverID: to, Content: content}
	if parent != nil {
		pid := parent.ID
		msg.ParentID = &pid
	}
	_, err := f.messages.Create(t.Context(), msg)
	require.NoError(t, err)
	return msg
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
