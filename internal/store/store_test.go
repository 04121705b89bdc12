package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "hllstatus/pkg/logx"
)

func countLines(out, substr string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func TestValidateDefaultsMissingKeysWithOneWarningEach(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logx.NewJSON(&buf, "debug")

	raw := Raw{KeyHeader: int64(1111), "legacy_section": int64(5)}
	doc := Validate("alpha", raw, SectionKeys, log)

	require.Len(t, doc, len(SectionKeys))
	assert.Equal(t, Handle(1111), doc[KeyHeader])
	for _, k := range []string{KeyGamestate, KeyRotationColor, KeyRotationEmbed} {
		assert.Equal(t, NoMessage, doc[k], k)
	}

	out := buf.String()
	assert.Equal(t, 3, countLines(out, "message id missing"))
	for _, k := range []string{KeyGamestate, KeyRotationColor, KeyRotationEmbed} {
		assert.Equal(t, 1, countLines(out, `"key":"`+k+`"`), k)
	}
	assert.Equal(t, 1, countLines(out, "unknown message id key"))
	assert.NotContains(t, doc, "legacy_section")
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	doc := Validate("alpha", Raw{
		KeyHeader:        "not-a-number",
		KeyGamestate:     "42",
		KeyRotationColor: float64(7),
		KeyRotationEmbed: int64(-1),
	}, SectionKeys, logx.NewJSON(&buf, "debug"))

	assert.Equal(t, NoMessage, doc[KeyHeader])
	assert.Equal(t, Handle(42), doc[KeyGamestate])
	assert.Equal(t, Handle(7), doc[KeyRotationColor])
	assert.Equal(t, NoMessage, doc[KeyRotationEmbed])
	assert.Equal(t, 2, countLines(buf.String(), "message id invalid"))
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	be, err := Open(ctx, Config{Driver: "file", Path: dir}, logx.Nop())
	require.NoError(t, err)
	defer be.Close()

	raw, err := be.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, raw)

	doc := Document{KeyHeader: 1234567890123456789, KeyGamestate: NoMessage}
	require.NoError(t, be.Save(ctx, "alpha", doc))

	b, err := os.ReadFile(filepath.Join(dir, "alpha.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "[message_ids]")

	raw, err = be.Load(ctx, "alpha")
	require.NoError(t, err)
	got := Validate("alpha", raw, []string{KeyHeader, KeyGamestate}, logx.Nop())
	assert.Equal(t, doc, got)
}

func TestFileStoreReadsHandWrittenDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bravo.toml"), []byte("[message_ids]\nheader = 10\nmap_rotation_embed = 20\n"), 0o644))

	be, err := Open(ctx, Config{Path: dir}, logx.Nop())
	require.NoError(t, err)

	var buf bytes.Buffer
	m, err := LoadMessages(ctx, be, "bravo", SectionKeys, logx.NewJSON(&buf, "debug"))
	require.NoError(t, err)
	assert.Equal(t, Handle(10), m.Get(KeyHeader))
	assert.Equal(t, Handle(20), m.Get(KeyRotationEmbed))
	assert.Equal(t, 2, countLines(buf.String(), "message id missing"))
}

func TestSQLiteStoreOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be, err := Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "messages.db")}, logx.Nop())
	require.NoError(t, err)
	defer be.Close()

	require.NoError(t, be.Save(ctx, "alpha", Document{KeyHeader: 1, KeyGamestate: 2}))
	require.NoError(t, be.Save(ctx, "alpha", Document{KeyHeader: 3}))
	require.NoError(t, be.Save(ctx, "bravo", Document{KeyHeader: 9}))

	raw, err := be.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, Raw{KeyHeader: int64(3)}, raw)
}

func TestMessagesSetPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	be, err := Open(ctx, Config{Path: dir}, logx.Nop())
	require.NoError(t, err)

	m, err := LoadMessages(ctx, be, "alpha", SectionKeys, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, KeyGamestate, 77))

	again, err := LoadMessages(ctx, be, "alpha", SectionKeys, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, Handle(77), again.Get(KeyGamestate))
	assert.Equal(t, m.Snapshot(), again.Snapshot())
}

// flakyBackend fails its first `failures` saves.
type flakyBackend struct {
	Backend
	failures int
	saves    int
}

func (b *flakyBackend) Save(ctx context.Context, server string, doc Document) error {
	b.saves++
	if b.failures > 0 {
		b.failures--
		return errors.New("disk full")
	}
	return b.Backend.Save(ctx, server, doc)
}

func TestMessagesSetRetriesAfterFailedSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := &flakyBackend{Backend: NewMemory(), failures: 1}

	m, err := LoadMessages(ctx, be, "alpha", SectionKeys, logx.Nop())
	require.NoError(t, err)
	require.Error(t, m.Set(ctx, KeyGamestate, 77))
	assert.Equal(t, Handle(77), m.Get(KeyGamestate))

	// Same handle after the next publish: the earlier failure forces a save.
	require.NoError(t, m.Set(ctx, KeyGamestate, 77))
	assert.Equal(t, 2, be.saves)

	raw, err := be.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(77), raw[KeyGamestate])

	// Once saved, an unchanged value is not written again.
	require.NoError(t, m.Set(ctx, KeyGamestate, 77))
	assert.Equal(t, 2, be.saves)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("HLLSTATUS_TEST_REDIS")
	if addr == "" {
		t.Skip("HLLSTATUS_TEST_REDIS not set")
	}
	ctx := context.Background()
	be, err := Open(ctx, Config{Driver: "redis", Addr: addr, Prefix: "hllstatus-test"}, logx.Nop())
	require.NoError(t, err)
	defer be.Close()

	require.NoError(t, be.Save(ctx, t.Name(), Document{KeyHeader: 5, KeyGamestate: NoMessage}))
	raw, err := be.Load(ctx, t.Name())
	require.NoError(t, err)
	assert.Equal(t, Raw{KeyHeader: int64(5), KeyGamestate: int64(0)}, raw)
}

func TestMemoryStoreKeepsDocumentsPerServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Open(ctx, Config{Driver: "none"}, logx.Nop())
	require.ErrorIs(t, err, ErrDisabled)

	be := NewMemory()
	m, err := LoadMessages(ctx, be, "alpha", SectionKeys, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, KeyHeader, 5))

	again, err := LoadMessages(ctx, be, "alpha", SectionKeys, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, Handle(5), again.Get(KeyHeader))

	other, err := be.Load(ctx, "bravo")
	require.NoError(t, err)
	assert.Empty(t, other)
}
