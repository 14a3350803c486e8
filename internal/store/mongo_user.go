package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/mcqdb/internal/model"
)

func byUsername(username string) bson.D {
	return bson.D{{Key: "username", Value: username}}
}

// TouchUser marks a user online, creating the user on first login.
func (m *Mongo) TouchUser(ctx context.Context, username string, now time.Time) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: model.StatusOnline},
			{Key: "last_active", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "created_at", Value: now},
			{Key: "profile", Value: model.Profile{}},
			{Key: "total_sessions", Value: int64(0)},
			{Key: "total_time_seconds", Value: int64(0)},
			{Key: "questions_created", Value: int64(0)},
			{Key: "sessions", Value: bson.A{}},
		}},
	}
	res, err := m.users.UpdateOne(ctx, byUsername(username), update, options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("failed to touch user", "username", username, "error", err)
		return m.wrap("touch user "+username, err)
	}
	if res.UpsertedCount > 0 {
		slog.Info("created user", "username", username)
	}
	return nil
}

// Heartbeat refreshes the user's last activity time.
func (m *Mongo) Heartbeat(ctx context.Context, username string, now time.Time) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.users.UpdateOne(ctx, byUsername(username), bson.D{{Key: "$set", Value: bson.D{
		{Key: "last_active", Value: now},
		{Key: "status", Value: model.StatusOnline},
	}}})
	if err != nil {
		return m.wrap("heartbeat "+username, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EndSession records a finished session, keeping the newest MaxSessionHistory entries.
func (m *Mongo) EndSession(ctx context.Context, username string, rec model.SessionRecord) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: model.StatusOffline},
			{Key: "last_active", Value: rec.End},
		}},
		{Key: "$inc", Value: bson.D{
			{Key: "total_sessions", Value: int64(1)},
			{Key: "total_time_seconds", Value: rec.DurationSeconds},
		}},
		{Key: "$push", Value: bson.D{{Key: "sessions", Value: bson.D{
			{Key: "$each", Value: bson.A{rec}},
			{Key: "$slice", Value: -model.MaxSessionHistory},
		}}}},
	}
	res, err := m.users.UpdateOne(ctx, byUsername(username), update)
	if err != nil {
		return m.wrap("end session "+username, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	slog.Info("session ended", "username", username, "duration_seconds", rec.DurationSeconds)
	return nil
}

// GetUser returns a user with session history, or nil if unknown.
func (m *Mongo) GetUser(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var u model.User
	err := m.users.FindOne(ctx, byUsername(username)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, m.wrap("get user "+username, err)
	}
	return &u, nil
}

// UpdateProfile replaces the user's profile.
func (m *Mongo) UpdateProfile(ctx context.Context, username string, p model.Profile) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.users.UpdateOne(ctx, byUsername(username),
		bson.D{{Key: "$set", Value: bson.D{{Key: "profile", Value: p}}}})
	if err != nil {
		return m.wrap("update profile "+username, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) findUsers(ctx context.Context, filter bson.D) ([]model.User, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "last_active", Value: -1}}).
		SetProjection(bson.D{{Key: "sessions", Value: 0}})
	cur, err := m.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.wrap("list users", err)
	}
	var users []model.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, m.wrap("decode users", err)
	}
	return users, nil
}

// ListUsers returns all users, most recently active first.
func (m *Mongo) ListUsers(ctx context.Context) ([]model.User, error) {
	return m.findUsers(ctx, bson.D{})
}

// OnlineUsers returns users marked online whose last activity is at or after since.
func (m *Mongo) OnlineUsers(ctx context.Context, since time.Time) ([]model.User, error) {
	return m.findUsers(ctx, bson.D{
		{Key: "status", Value: model.StatusOnline},
		{Key: "last_active", Value: bson.D{{Key: "$gte", Value: since}}},
	})
}

// IncQuestionsCreated adds n to the user's authored question counter.
func (m *Mongo) IncQuestionsCreated(ctx context.Context, username string, n int) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.users.UpdateOne(ctx, byUsername(username),
		bson.D{{Key: "$inc", Value: bson.D{{Key: "questions_created", Value: int64(n)}}}})
	if err != nil {
		return m.wrap("count questions for "+username, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentSessions returns the newest sessions across all users.
func (m *Mongo) RecentSessions(ctx context.Context, limit int) ([]model.UserSession, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$sessions"}},
		{{Key: "$sort", Value: bson.D{{Key: "sessions.end", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.D{{Key: "username", Value: 1}, {Key: "sessions", Value: 1}}}},
	}
	cur, err := m.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, m.wrap("recent sessions", err)
	}
	var rows []struct {
		Username string              `bson:"username"`
		Session  model.SessionRecord `bson:"sessions"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, m.wrap("decode sessions", err)
	}
	out := make([]model.UserSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.UserSession{Username: r.Username, SessionRecord: r.Session})
	}
	return out, nil
}
