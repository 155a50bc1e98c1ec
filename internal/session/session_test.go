// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-synth/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "sessions.db"), filepath.Join(dir, "workspaces"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSanitizeTag(t *testing.T) {
	assert.Equal(t, "my-session_1", SanitizeTag("my-session_1"))
	assert.Equal(t, "abc123", SanitizeTag("abc 123!@#"))
	assert.Equal(t, "", SanitizeTag("!!!"))
}

func TestCreate_InvalidTag(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), "!!!", "claude")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
}

func TestCreate_AlreadyExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "dup", "claude")
	require.NoError(t, err)

	_, err = s.Create(ctx, "dup", "claude")
	require.Error(t, err)
	assert.Equal(t, errs.KindAlreadyExists, errs.KindOf(err))
}

func TestCreate_MakesWorkspaceDirectory(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Create(context.Background(), "sess1", "claude-opus")
	require.NoError(t, err)
	assert.Equal(t, "sess1", rec.SessionID)

	info, err := os.Stat(s.WorkspaceDir("sess1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUpdateStats_ReplacesCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "sess1", "claude")
	require.NoError(t, err)

	require.NoError(t, s.UpdateStats(ctx, "sess1", 100, 50, 10, 0.25))

	rec, err := s.Metadata(ctx, "sess1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(100), rec.TokensInput)
	assert.Equal(t, int64(50), rec.TokensOutput)
	assert.Equal(t, int64(10), rec.TokensCached)
	assert.Equal(t, int64(160), rec.TokensTotal)
	assert.Equal(t, 0.25, rec.CostUSD)
}

func TestUpdateStats_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStats(context.Background(), "nope", 1, 1, 1, 1)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestDelete_RemovesWorkspaceAndRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "sess1", "claude")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "sess1"))

	_, statErr := os.Stat(s.WorkspaceDir("sess1"))
	assert.True(t, os.IsNotExist(statErr))

	rec, err := s.Metadata(ctx, "sess1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestList_OrderedByUpdatedThenCreatedDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "first", "claude")
	require.NoError(t, err)
	_, err = s.Create(ctx, "second", "claude")
	require.NoError(t, err)

	// Bump "first"'s updated_at so it sorts ahead of "second" despite being
	// created earlier.
	require.NoError(t, s.UpdateStats(ctx, "first", 1, 1, 1, 1))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].SessionID)
	assert.Equal(t, "second", list[1].SessionID)
}

func TestList_ExcludesMissingWorkspaceDirectories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "sess1", "claude")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(s.WorkspaceDir("sess1")))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
