package service

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitwise74/smart-librarian/db"
	"bitwise74/smart-librarian/pkg/security"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database migrated with every model
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := d.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(d))

	return d
}

// Cheap parameters keep the suite fast
func testArgon() *security.ArgonHash {
	return security.New(1024, 1, 1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type sentMail struct {
	to, subject, html string
}

var codePattern = regexp.MustCompile(`>(\d{6})<`)

// outbox captures queued mail instead of sending it
type outbox struct {
	mu   sync.Mutex
	msgs []sentMail
	err  error
}

func (o *outbox) Enqueue(to, subject, html string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return o.err
	}

	o.msgs = append(o.msgs, sentMail{to, subject, html})
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.msgs)
}

// lastCode returns the code of the newest message sent to addr
func (o *outbox) lastCode(t *testing.T, addr string) string {
	t.Helper()

	o.mu.Lock()
	defer o.mu.Unlock()

	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].to != addr {
			continue
		}

		m := codePattern.FindStringSubmatch(o.msgs[i].html)
		require.Len(t, m, 2, "no code in mail body")
		return m[1]
	}

	t.Fatalf("no mail sent to %s", addr)
	return ""
}

// otherCode returns a well formed code different from c
func otherCode(c string) string {
	var n int
	fmt.Sscanf(c, "%d", &n)
	return fmt.Sprintf("%06d", (n+1)%1_000_000)
}
