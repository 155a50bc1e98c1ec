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

package toolfacade

import "context"

// CreateSession implements the session-switcher's "create" operation. On
// success, the new session becomes the active one, so the next tool call
// that names no session_id lands in its workspace.
func (f *Facade) CreateSession(ctx context.Context, tag, modelName string) string {
	return invoke(func() (any, error) {
		rec, err := f.sessions.Create(ctx, tag, modelName)
		if err != nil {
			return nil, err
		}
		f.UseSession(rec.SessionID)
		return rec, nil
	})
}

// SwitchSession implements the session-switcher's "use" operation: bind an
// already-existing session as active without creating anything.
func (f *Facade) SwitchSession(ctx context.Context, sessionID string) string {
	return invoke(func() (any, error) {
		rec, err := f.sessions.Metadata(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			_, _, err := f.resolveWorkspace(ctx, sessionID) // produces the NotFoundError
			return nil, err
		}
		f.UseSession(sessionID)
		return rec, nil
	})
}

// ListSessions implements list_sessions.
func (f *Facade) ListSessions(ctx context.Context) string {
	return invoke(func() (any, error) {
		return f.sessions.List(ctx)
	})
}

// SessionMetadata implements session metadata lookup.
func (f *Facade) SessionMetadata(ctx context.Context, sessionID string) string {
	return invoke(func() (any, error) {
		return f.sessions.Metadata(ctx, sessionID)
	})
}

// UpdateSessionStats implements the cumulative token/cost counter update
// the agent runtime calls after every model turn.
func (f *Facade) UpdateSessionStats(ctx context.Context, sessionID string, tokensIn, tokensOut, tokensCached int64, costUSD float64) string {
	return invoke(func() (any, error) {
		if err := f.sessions.UpdateStats(ctx, sessionID, tokensIn, tokensOut, tokensCached, costUSD); err != nil {
			return nil, err
		}
		return f.sessions.Metadata(ctx, sessionID)
	})
}

// DeleteSession implements delete_session, clearing
// the active-session binding if it pointed at the deleted session.
func (f *Facade) DeleteSession(ctx context.Context, sessionID string) string {
	return invoke(func() (any, error) {
		if err := f.sessions.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		if f.ActiveSession() == sessionID {
			f.UseSession("")
		}
		return map[string]string{"status": "deleted", "session_id": sessionID}, nil
	})
}
