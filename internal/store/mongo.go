package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/model"
)

// Mongo is the MongoDB backend.
type Mongo struct {
	client    *mongo.Client
	questions *mongo.Collection
	users     *mongo.Collection
	timeout   time.Duration
}

var _ Store = (*Mongo)(nil)

// questionDoc carries the ObjectID that model.Question keeps as a hex string.
type questionDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	model.Question `bson:",inline"`
}

func (d questionDoc) question() model.Question {
	q := d.Question
	q.ID = d.ID.Hex()
	return q
}

func openMongo(ctx context.Context, cfg Config) (*Mongo, error) {
	uri, err := resolveURI(cfg.URI, cfg.Password)
	if err != nil {
		return nil, err
	}
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(DefaultSelectTimeout).
		SetConnectTimeout(DefaultSelectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, unavailable("connect to MongoDB", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, DefaultSelectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("ping MongoDB", err)
	}

	db := client.Database(cfg.Database)
	m := &Mongo{
		client:    client,
		questions: db.Collection(questionsCollection),
		users:     db.Collection(usersCollection),
		timeout:   cfg.Timeout,
	}
	if err := m.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.Info("connected to MongoDB", "uri", redact(cfg.URI), "database", cfg.Database)
	return m, nil
}

// resolveURI fills the password into a connection string.
func resolveURI(uri, password string) (string, error) {
	if password == "" {
		return uri, nil
	}
	if strings.Contains(uri, passwordPlaceholder) {
		escaped := strings.ReplaceAll(url.QueryEscape(password), "+", "%20")
		return strings.ReplaceAll(uri, passwordPlaceholder, escaped), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse store URI: %w", err)
	}
	if u.User != nil {
		if _, set := u.User.Password(); !set {
			u.User = url.UserPassword(u.User.Username(), password)
		}
	}
	return u.String(), nil
}

func (m *Mongo) createIndexes(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.questions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "question", Value: 1}, {Key: "subject", Value: 1}}},
		{Keys: bson.D{{Key: "subject", Value: 1}}},
		{Keys: bson.D{{Key: "topic", Value: 1}}},
		{Keys: bson.D{{Key: "classification", Value: 1}}},
		{Keys: bson.D{{Key: "level", Value: 1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
	})
	if err != nil {
		return m.wrap("create question indexes", err)
	}
	_, err = m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "last_active", Value: 1}}},
	})
	if err != nil {
		return m.wrap("create user indexes", err)
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// wrap annotates err with op, marking connectivity failures with ErrUnavailable.
func (m *Mongo) wrap(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FindQuestions returns matching questions, newest first.
func (m *Mongo) FindQuestions(ctx context.Context, p filter.Predicate) ([]model.Question, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.questions.Find(ctx, p.BSON(), opts)
	if err != nil {
		return nil, m.wrap("find questions", err)
	}
	var docs []questionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, m.wrap("decode questions", err)
	}
	questions := make([]model.Question, 0, len(docs))
	for _, d := range docs {
		questions = append(questions, d.question())
	}
	return questions, nil
}

// GetQuestion returns a question by ID, or nil if it does not exist.
func (m *Mongo) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var d questionDoc
	err = m.questions.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, m.wrap("get question "+id, err)
	}
	q := d.question()
	return &q, nil
}

// InsertQuestions stores questions with client-generated IDs.
func (m *Mongo) InsertQuestions(ctx context.Context, qs []model.Question) ([]string, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	docs := make([]any, 0, len(qs))
	ids := make([]string, 0, len(qs))
	now := time.Now()
	for _, q := range qs {
		if q.CreatedAt.IsZero() {
			q.CreatedAt = now
		}
		oid := primitive.NewObjectID()
		docs = append(docs, questionDoc{ID: oid, Question: q})
		ids = append(ids, oid.Hex())
	}
	if _, err := m.questions.InsertMany(ctx, docs); err != nil {
		return nil, m.wrap("insert questions", err)
	}
	return ids, nil
}

// UpdateQuestion overwrites the editable fields of an existing question.
func (m *Mongo) UpdateQuestion(ctx context.Context, q model.Question) error {
	oid, err := primitive.ObjectIDFromHex(q.ID)
	if err != nil {
		return ErrNotFound
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	set := bson.D{
		{Key: "subject", Value: q.Subject},
		{Key: "topic", Value: q.Topic},
		{Key: "classification", Value: q.Classification},
		{Key: "question", Value: q.Text},
		{Key: "option1", Value: q.Option1},
		{Key: "option2", Value: q.Option2},
		{Key: "option3", Value: q.Option3},
		{Key: "option4", Value: q.Option4},
		{Key: "correctAnswer", Value: q.CorrectAnswer},
		{Key: "level", Value: q.Level},
		{Key: "marks", Value: q.Marks},
		{Key: "updated_at", Value: q.UpdatedAt},
	}
	res, err := m.questions.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return m.wrap("update question "+q.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQuestion removes a question.
func (m *Mongo) DeleteQuestion(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.questions.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return m.wrap("delete question "+id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionExists reports whether the exact (subject, question) pair is stored.
func (m *Mongo) QuestionExists(ctx context.Context, subject, text string) (bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.questions.CountDocuments(ctx,
		bson.D{{Key: "question", Value: text}, {Key: "subject", Value: subject}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, m.wrap("check duplicate", err)
	}
	return n > 0, nil
}

// DistinctValues returns sorted distinct non-empty values of a field.
func (m *Mongo) DistinctValues(ctx context.Context, field string, p filter.Predicate) ([]string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	raw, err := m.questions.Distinct(ctx, field, p.BSON())
	if err != nil {
		return nil, m.wrap("distinct "+field, err)
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			values = append(values, s)
		}
	}
	slices.Sort(values)
	return values, nil
}

// Stats returns aggregate counts over the question bank.
func (m *Mongo) Stats(ctx context.Context, username string) (model.Stats, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var st model.Stats
	counts := []struct {
		dst    *int64
		filter bson.D
	}{
		{&st.Total, bson.D{}},
		{&st.Easy, bson.D{{Key: "level", Value: model.LevelEasy}}},
		{&st.Medium, bson.D{{Key: "level", Value: model.LevelMedium}}},
		{&st.Hard, bson.D{{Key: "level", Value: model.LevelHard}}},
		{&st.Mine, bson.D{{Key: "created_by", Value: username}}},
	}
	for _, c := range counts {
		n, err := m.questions.CountDocuments(ctx, c.filter)
		if err != nil {
			return st, m.wrap("question stats", err)
		}
		*c.dst = n
	}
	subjects, err := m.questions.Distinct(ctx, "subject", bson.D{})
	if err != nil {
		return st, m.wrap("distinct subjects", err)
	}
	st.Subjects = int64(len(subjects))
	return st, nil
}

// SubjectDistribution returns question counts per subject, largest first.
func (m *Mongo) SubjectDistribution(ctx context.Context, limit int) ([]model.SubjectCount, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$subject"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := m.questions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, m.wrap("subject distribution", err)
	}
	var out []model.SubjectCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, m.wrap("decode subject distribution", err)
	}
	return out, nil
}
