package database

import (
	"sync/atomic"

	"github.com/ostafen/clover"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const (
	UsersCollection       = "users"
	PostsCollection       = "posts"
	CommentsCollection    = "comments"
	ReactionsCollection   = "reactions"
	HiddenPostsCollection = "hidden_posts"

	// IDField is the application id; clover keeps its own _id alongside.
	IDField = "id"
)

var collections = []string{
	UsersCollection,
	PostsCollection,
	CommentsCollection,
	ReactionsCollection,
	HiddenPostsCollection,
}

// Filter selects documents. Equals and NotIn are combined with AND.
type Filter struct {
	Equals     map[string]interface{}
	NotEquals  map[string]interface{}
	NotIn      map[string][]interface{}
	SortField  string
	Descending bool
	Skip       int
	Limit      int
}

// CloverStore is the authoritative document store behind the caches.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
	config *types.DatabaseConfig
	state  atomic.Value
}

func NewCloverStore(config *types.DatabaseConfig, logger types.Logger) (*CloverStore, error) {
	var db *clover.DB
	var err error

	if config.InMemory {
		db, err = clover.Open("", clover.InMemoryMode(true))
	} else {
		db, err = clover.Open(config.Path)
	}

	if err != nil {
		return nil, errors.Wrap(err, "failed to open clover database")
	}

	store := &CloverStore{
		db:     db,
		logger: logger,
		config: config,
	}

	if err := store.ensureCollections(); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.state.Store(StateStopped)
	return store, nil
}

func (c *CloverStore) Start() error {
	if !c.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}

	c.logger.Info("Clover database started",
		zap.String("path", c.config.Path),
		zap.Bool("in_memory", c.config.InMemory))
	return nil
}

func (c *CloverStore) Stop() error {
	if !c.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrDatabaseIsNotOpen
	}

	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close clover database")
	}

	c.logger.Info("Clover database stopped")
	return nil
}

func (c *CloverStore) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

// Insert stores record, which must marshal to a JSON object carrying an id field.
func (c *CloverStore) Insert(collection string, record interface{}) error {
	fields, err := toFields(record)
	if err != nil {
		return err
	}

	doc := clover.NewDocument()
	for key, value := range fields {
		doc.Set(key, value)
	}

	if err := c.db.Insert(collection, doc); err != nil {
		return errors.Wrapf(err, "failed to insert into %s", collection)
	}

	return nil
}

// FindByID decodes the document with the given application id into out.
func (c *CloverStore) FindByID(collection, id string, out interface{}) error {
	doc, err := c.db.Query(collection).Where(clover.Field(IDField).Eq(id)).FindFirst()
	if err != nil {
		return errors.Wrapf(err, "failed to find %s/%s", collection, id)
	}

	if doc == nil {
		return types.Errorf(types.ErrDocumentNotFound, "%s/%s", collection, id)
	}

	return decode(doc, out)
}

// Find decodes every matching document into out, a pointer to a slice.
func (c *CloverStore) Find(collection string, filter Filter, out interface{}) error {
	query := c.query(collection, filter)

	if filter.SortField != "" {
		direction := 1
		if filter.Descending {
			direction = -1
		}
		query = query.Sort(clover.SortOption{Field: filter.SortField, Direction: direction})
	}

	if filter.Skip > 0 {
		query = query.Skip(filter.Skip)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	docs, err := query.FindAll()
	if err != nil {
		return errors.Wrapf(err, "failed to query %s", collection)
	}

	records := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		fields := make(map[string]interface{})
		if err := doc.Unmarshal(&fields); err != nil {
			return errors.Wrapf(err, "failed to decode %s document", collection)
		}
		delete(fields, "_id")
		records = append(records, fields)
	}

	return errors.WithStack(utils.ConvertTo(records, out))
}

func (c *CloverStore) Count(collection string, filter Filter) (int, error) {
	count, err := c.query(collection, filter).Count()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", collection)
	}
	return count, nil
}

// Update sets fields on every document matching filter and returns how many matched.
func (c *CloverStore) Update(collection string, filter Filter, fields map[string]interface{}) (int, error) {
	query := c.query(collection, filter)

	count, err := query.Count()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", collection)
	}

	if count == 0 {
		return 0, nil
	}

	if err := query.Update(fields); err != nil {
		return 0, errors.Wrapf(err, "failed to update %s", collection)
	}

	return count, nil
}

func (c *CloverStore) Delete(collection string, filter Filter) (int, error) {
	query := c.query(collection, filter)

	count, err := query.Count()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", collection)
	}

	if count == 0 {
		return 0, nil
	}

	if err := query.Delete(); err != nil {
		return 0, errors.Wrapf(err, "failed to delete from %s", collection)
	}

	return count, nil
}

func (c *CloverStore) query(collection string, filter Filter) *clover.Query {
	query := c.db.Query(collection)

	for field, value := range filter.Equals {
		query = query.Where(clover.Field(field).Eq(value))
	}

	for field, value := range filter.NotEquals {
		query = query.Where(clover.Field(field).Neq(value))
	}

	for field, values := range filter.NotIn {
		if len(values) > 0 {
			query = query.Where(clover.Field(field).In(values...).Not())
		}
	}

	return query
}

func (c *CloverStore) ensureCollections() error {
	for _, name := range collections {
		exists, err := c.db.HasCollection(name)
		if err != nil {
			return errors.Wrapf(err, "failed to check collection %s", name)
		}

		if exists {
			continue
		}

		if err := c.db.CreateCollection(name); err != nil {
			return errors.Wrapf(err, "failed to create collection %s", name)
		}
	}

	return nil
}

func toFields(record interface{}) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if err := utils.Convert(record, &fields); err != nil {
		return nil, errors.Wrap(err, "failed to encode document")
	}
	return fields, nil
}

func decode(doc *clover.Document, out interface{}) error {
	fields := make(map[string]interface{})
	if err := doc.Unmarshal(&fields); err != nil {
		return errors.Wrap(err, "failed to decode document")
	}

	delete(fields, "_id")

	return errors.WithStack(utils.ConvertTo(fields, out))
}
