package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/models"
)

const (
	todosCollection   = "todos"
	threadsCollection = "threads"
)

// MongoStore implements Store on a MongoDB database with `todos` and
// `threads` collections.
type MongoStore struct {
	client  *mongo.Client
	todos   *mongo.Collection
	threads *mongo.Collection
}

// NewMongoStore connects to uri and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errs.Persistence("connect mongo", errors.New("mongo.uri is not configured"))
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.Persistence("connect mongo", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.Persistence("ping mongo", err)
	}
	db := client.Database(database)
	return &MongoStore{
		client:  client,
		todos:   db.Collection(todosCollection),
		threads: db.Collection(threadsCollection),
	}, nil
}

// Migrate creates the indexes used for listing and thread lookups.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.todos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return errs.Persistence("create todos index", err)
	}
	_, err = s.threads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "todoId", Value: 1}},
	})
	if err != nil {
		return errs.Persistence("create threads index", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Documents ---

type taskDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Title        string             `bson:"title"`
	Description  string             `bson:"description"`
	Status       string             `bson:"status"`
	Priority     string             `bson:"priority,omitempty"`
	DueDate      *time.Time         `bson:"dueDate,omitempty"`
	ReminderDate *time.Time         `bson:"reminderDate,omitempty"`
	URLs         []string           `bson:"urls"`
	AIEnabled    bool               `bson:"aiEnabled"`
	AIProvider   string             `bson:"aiProvider,omitempty"`
	ThreadID     string             `bson:"threadId,omitempty"`
	AIBrief      string             `bson:"aiBrief,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

type messageDoc struct {
	Role    string `bson:"role"`
	Content string `bson:"content"`
}

type threadDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	TodoID    primitive.ObjectID `bson:"todoId"`
	Provider  string             `bson:"provider,omitempty"`
	Messages  []messageDoc       `bson:"messages"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toTaskDoc(t *models.Task) (taskDoc, error) {
	oid, err := primitive.ObjectIDFromHex(t.ID)
	if err != nil {
		return taskDoc{}, errs.Validationf("invalid task id %q", t.ID)
	}
	urls := t.URLs
	if urls == nil {
		urls = []string{}
	}
	return taskDoc{
		ID:           oid,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		DueDate:      t.DueDate,
		ReminderDate: t.ReminderDate,
		URLs:         urls,
		AIEnabled:    t.AIEnabled,
		AIProvider:   string(t.AIProvider),
		ThreadID:     t.ThreadID,
		AIBrief:      t.AIBrief,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}, nil
}

func (d taskDoc) task() *models.Task {
	t := &models.Task{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		Description:  d.Description,
		Status:       models.TaskStatus(d.Status),
		Priority:     models.TaskPriority(d.Priority),
		DueDate:      d.DueDate,
		ReminderDate: d.ReminderDate,
		URLs:         d.URLs,
		AIEnabled:    d.AIEnabled,
		AIProvider:   models.Provider(d.AIProvider),
		ThreadID:     d.ThreadID,
		AIBrief:      d.AIBrief,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.URLs == nil {
		t.URLs = []string{}
	}
	return t
}

func (d threadDoc) thread() *models.Thread {
	th := &models.Thread{
		ID:        d.ID.Hex(),
		Provider:  models.Provider(d.Provider),
		Messages:  make([]models.Message, 0, len(d.Messages)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if !d.TodoID.IsZero() {
		th.TodoID = d.TodoID.Hex()
	}
	for _, m := range d.Messages {
		th.Messages = append(th.Messages, models.Message{Role: models.Role(m.Role), Content: m.Content})
	}
	return th
}

func messageDocs(msgs []models.Message) []messageDoc {
	docs := make([]messageDoc, 0, len(msgs))
	for _, m := range msgs {
		docs = append(docs, messageDoc{Role: string(m.Role), Content: m.Content})
	}
	return docs
}

// taskUpdate builds the $set/$unset document for patch.
func taskUpdate(patch models.TaskPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	unset := bson.M{}

	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Priority != nil {
		set["priority"] = string(*patch.Priority)
	}
	if patch.ClearDueDate {
		unset["dueDate"] = ""
	} else if patch.DueDate != nil {
		set["dueDate"] = patch.DueDate.UTC()
	}
	if patch.ClearReminderDate {
		unset["reminderDate"] = ""
	} else if patch.ReminderDate != nil {
		set["reminderDate"] = patch.ReminderDate.UTC()
	}
	if patch.URLs != nil {
		urls := *patch.URLs
		if urls == nil {
			urls = []string{}
		}
		set["urls"] = urls
	}
	if patch.AIEnabled != nil {
		set["aiEnabled"] = *patch.AIEnabled
	}
	setOrUnset := func(key, v string) {
		if v == "" {
			unset[key] = ""
		} else {
			set[key] = v
		}
	}
	if patch.AIProvider != nil {
		setOrUnset("aiProvider", string(models.NormalizeProvider(*patch.AIProvider)))
	}
	if patch.ThreadID != nil {
		setOrUnset("threadId", *patch.ThreadID)
	}
	if patch.AIBrief != nil {
		setOrUnset("aiBrief", *patch.AIBrief)
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func objectID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.Validationf("invalid %s id %q", kind, id)
	}
	return oid, nil
}

// --- Tasks ---

func (s *MongoStore) ListTasks(ctx context.Context) ([]*models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.todos.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errs.Persistence("list tasks", err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.Persistence("decode tasks", err)
	}
	tasks := make([]*models.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.task())
	}
	return tasks, nil
}

func (s *MongoStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	oid, err := objectID("task", id)
	if err != nil {
		return nil, err
	}
	var d taskDoc
	err = s.todos.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFoundf("task %s", id)
	}
	if err != nil {
		return nil, errs.Persistence("get task", err)
	}
	return d.task(), nil
}

func (s *MongoStore) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = models.NewID()
	}
	if t.URLs == nil {
		t.URLs = []string{}
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	d, err := toTaskDoc(t)
	if err != nil {
		return err
	}
	if _, err := s.todos.InsertOne(ctx, d); err != nil {
		return errs.Persistence("create task", err)
	}
	return nil
}

func (s *MongoStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	oid, err := objectID("task", id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d taskDoc
	err = s.todos.FindOneAndUpdate(ctx, bson.M{"_id": oid}, taskUpdate(patch, time.Now().UTC()), opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFoundf("task %s", id)
	}
	if err != nil {
		return nil, errs.Persistence("update task", err)
	}
	return d.task(), nil
}

func (s *MongoStore) DeleteTask(ctx context.Context, id string) error {
	oid, err := objectID("task", id)
	if err != nil {
		return err
	}
	result, err := s.todos.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errs.Persistence("delete task", err)
	}
	if result.DeletedCount == 0 {
		return errs.NotFoundf("task %s", id)
	}
	return nil
}

// --- Threads ---

func (s *MongoStore) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	oid, err := objectID("thread", id)
	if err != nil {
		return nil, err
	}
	var d threadDoc
	err = s.threads.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFoundf("thread %s", id)
	}
	if err != nil {
		return nil, errs.Persistence("get thread", err)
	}
	return d.thread(), nil
}

func (s *MongoStore) CreateThread(ctx context.Context, th *models.Thread) error {
	if th.ID == "" {
		th.ID = models.NewID()
	}
	oid, err := objectID("thread", th.ID)
	if err != nil {
		return err
	}
	todoID, err := objectID("task", th.TodoID)
	if err != nil {
		return err
	}
	if th.Messages == nil {
		th.Messages = []models.Message{}
	}
	now := time.Now().UTC()
	th.CreatedAt = now
	th.UpdatedAt = now

	d := threadDoc{
		ID:        oid,
		TodoID:    todoID,
		Provider:  string(th.Provider),
		Messages:  messageDocs(th.Messages),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.threads.InsertOne(ctx, d); err != nil {
		return errs.Persistence("create thread", err)
	}
	return nil
}

// AppendMessages pushes msgs in a single update so concurrent appends never
// overwrite each other.
func (s *MongoStore) AppendMessages(ctx context.Context, id string, msgs ...models.Message) error {
	oid, err := objectID("thread", id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": messageDocs(msgs)}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := s.threads.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return errs.Persistence("append messages", err)
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundf("thread %s", id)
	}
	return nil
}
