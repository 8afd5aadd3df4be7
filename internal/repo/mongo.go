/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const lockTTL = 30 * time.Minute

// Mongo is the document-store Backend: tasks embed their effort metrics.
type Mongo struct {
	client   *mongo.Client
	db       *mongo.Database
	tasks    *mongo.Collection
	users    *mongo.Collection
	projects *mongo.Collection
	runs     *mongo.Collection
	locks    *mongo.Collection
	log      zerolog.Logger
}

func OpenMongo(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx2, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(cfg.MongoDatabase)
	m := &Mongo{
		client:   client,
		db:       db,
		tasks:    db.Collection("tasks"),
		users:    db.Collection("users"),
		projects: db.Collection("projects"),
		runs:     db.Collection("job_runs"),
		locks:    db.Collection("job_locks"),
		log:      log,
	}
	if err := m.ensureIndexes(ctx2); err != nil {
		log.Warn().Err(err).Msg("mongo: ensure indexes failed")
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "assignees", Value: 1}, {Key: "completedAt", Value: 1}}},
		{Keys: bson.D{{Key: "projectId", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
	})
	return err
}

func (m *Mongo) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }

func (m *Mongo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := m.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user", id)
		}
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) ListUsers(ctx context.Context) ([]domain.User, error) {
	cur, err := m.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) SaveUser(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := m.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	if err := m.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("project", id)
		}
		return nil, err
	}
	return &p, nil
}

func (m *Mongo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	cur, err := m.projects.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) SaveProject(ctx context.Context, p domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := m.projects.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	if err := m.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("task", id)
		}
		return nil, err
	}
	return &t, nil
}

func taskQuery(f TaskFilter) bson.M {
	q := bson.M{}
	if f.AssigneeID != "" {
		q["assignees"] = f.AssigneeID
	}
	if f.ProjectID != "" {
		q["projectId"] = f.ProjectID
	}
	if f.Completed != nil {
		q["completed"] = *f.Completed
	}
	if f.CompletedFrom != nil || f.CompletedTo != nil {
		r := bson.M{}
		if f.CompletedFrom != nil {
			r["$gte"] = *f.CompletedFrom
		}
		if f.CompletedTo != nil {
			r["$lte"] = *f.CompletedTo
		}
		q["completedAt"] = r
	}
	if f.DueFrom != nil || f.DueTo != nil {
		r := bson.M{}
		if f.DueFrom != nil {
			r["$gte"] = *f.DueFrom
		}
		if f.DueTo != nil {
			r["$lte"] = *f.DueTo
		}
		q["dueDate"] = r
	}
	return q
}

func (m *Mongo) FindTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.tasks.Find(ctx, taskQuery(f), opts)
	if err != nil {
		return nil, err
	}
	var out []domain.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) SaveTask(ctx context.Context, t domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	_, err := m.tasks.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) StartJobRun(ctx context.Context, kind string) (string, error) {
	run := domain.JobRun{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now().UTC()}
	if _, err := m.runs.InsertOne(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (m *Mongo) FinishJobRun(ctx context.Context, run domain.JobRun) error {
	res, err := m.runs.UpdateOne(ctx, bson.M{"_id": run.ID}, bson.M{"$set": bson.M{
		"finishedAt": time.Now().UTC(),
		"success":    run.Success,
		"error":      run.Error,
		"reportFile": run.ReportFile,
		"delivered":  run.Delivered,
		"failed":     run.Failed,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("job run", run.ID)
	}
	return nil
}

func (m *Mongo) GetLastRun(ctx context.Context) (*domain.JobRun, error) {
	var r domain.JobRun
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if err := m.runs.FindOne(ctx, bson.M{}, opts).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("job run", "last")
		}
		return nil, err
	}
	return &r, nil
}

// TryLock inserts a lock document; an expired lock left by a crashed
// process is removed first.
func (m *Mongo) TryLock(ctx context.Context, key string) (bool, error) {
	now := time.Now().UTC()
	if _, err := m.locks.DeleteOne(ctx, bson.M{"_id": key, "expiresAt": bson.M{"$lt": now}}); err != nil {
		return false, err
	}
	_, err := m.locks.InsertOne(ctx, bson.M{"_id": key, "lockedAt": now, "expiresAt": now.Add(lockTTL)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Mongo) Unlock(ctx context.Context, key string) error {
	_, err := m.locks.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
