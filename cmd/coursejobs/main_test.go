package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

func TestNewLogger_Level(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("info").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("ERROR").Enabled(ctx, slog.LevelWarn))
	assert.True(t, newLogger("bogus").Enabled(ctx, slog.LevelInfo))
}

func TestSubmitBody(t *testing.T) {
	t.Cleanup(func() { submitPayload, submitFile, submitCourseID = "", "", "" })

	submitPayload = `{"text":"hi"}`
	b, err := submitBody()
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi"}`, string(b))

	dir := t.TempDir()
	p := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"course_id":"c1"}`), 0o600))
	submitPayload = "@" + p
	b, err = submitBody()
	require.NoError(t, err)
	assert.JSONEq(t, `{"course_id":"c1"}`, string(b))

	doc := filepath.Join(dir, "notes.docx")
	require.NoError(t, os.WriteFile(doc, []byte("docx"), 0o600))
	submitPayload, submitFile, submitCourseID = "", doc, "bio-101"
	b, err = submitBody()
	require.NoError(t, err)
	got, err := entity.DecodePayload(b)
	require.NoError(t, err)
	assert.Equal(t, "notes.docx", got.Filename)
	assert.Equal(t, "bio-101", got.CourseID)
	data, err := got.DocumentBytes()
	require.NoError(t, err)
	assert.Equal(t, "docx", string(data))
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("from", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDay("from", "2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, 28, d.Day())

	_, err = parseDay("to", "28/02/2026")
	assert.ErrorContains(t, err, "--to")
}
