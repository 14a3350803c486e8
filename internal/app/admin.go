package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/presence"
	"github.com/pavelanni/mcqdb/internal/store"
)

// RecentSessionCount is the number of sessions shown in a user's details.
const RecentSessionCount = 5

// UserRow is one line of the admin user table.
type UserRow struct {
	model.User
	Online    bool   `json:"online"`
	LastSeen  string `json:"last_seen"`
	TotalTime string `json:"total_time"`
}

// AdminView is the admin overview of users and activity.
type AdminView struct {
	Summary     model.AdminSummary `json:"summary"`
	Users       []UserRow          `json:"users"`
	RefreshedAt time.Time          `json:"refreshed_at"`
}

// AdminSummary collects user activity and presence.
func (s *Session) AdminSummary(ctx context.Context) (*AdminView, error) {
	now := time.Now().UTC()
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	online, err := s.Store.OnlineUsers(ctx, now.Add(-model.OnlineWindow))
	if err != nil {
		return nil, fmt.Errorf("online users: %w", err)
	}
	st, err := s.Store.Stats(ctx, s.Username)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	isOnline := make(map[string]bool, len(online))
	for _, u := range online {
		isOnline[u.Username] = true
	}
	rows := make([]UserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, UserRow{
			User:      u,
			Online:    isOnline[u.Username],
			LastSeen:  presence.LastSeen(u, now),
			TotalTime: presence.FormatDuration(u.TotalTimeSeconds),
		})
	}
	return &AdminView{
		Summary:     presence.Summarize(users, online, st.Total),
		Users:       rows,
		RefreshedAt: now,
	}, nil
}

// UserDetails is the admin view of one user.
type UserDetails struct {
	model.User
	// Authored counts the questions in the bank created by the user.
	Authored int64                 `json:"authored"`
	Recent   []model.SessionRecord `json:"recent_sessions"`
}

// UserDetails returns a user's profile, activity and latest sessions, newest first.
func (s *Session) UserDetails(ctx context.Context, username string) (*UserDetails, error) {
	u, err := s.Store.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", username, ErrUnknownUser)
	}
	st, err := s.Store.Stats(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", username, err)
	}
	d := &UserDetails{User: *u, Authored: st.Mine}
	for i := len(u.Sessions) - 1; i >= 0 && len(d.Recent) < RecentSessionCount; i-- {
		d.Recent = append(d.Recent, u.Sessions[i])
	}
	d.Sessions = nil
	return d, nil
}

// Profile returns the session user's record.
func (s *Session) Profile(ctx context.Context) (*model.User, error) {
	u, err := s.Store.GetUser(ctx, s.Username)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", s.Username, err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", s.Username, ErrUnknownUser)
	}
	return u, nil
}

// UpdateProfile replaces the session user's profile.
func (s *Session) UpdateProfile(ctx context.Context, p model.Profile) error {
	if err := s.Store.UpdateProfile(ctx, s.Username, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %s: %w", s.Username, ErrUnknownUser)
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}
