package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/types"
)

// CloverStore is the document record store. It reports write success or
// failure unambiguously: callers trigger cache invalidation only after a
// write returns nil.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
}

func NewCloverStore(config *types.StoreConfig, logger types.Logger) (*CloverStore, error) {
	db, err := clover.Open(config.Path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open record store")
	}

	logger.Info("Record store opened", zap.String("path", config.Path))

	return &CloverStore{
		db:     db,
		logger: logger,
	}, nil
}

func (c *CloverStore) Close() error {
	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close record store")
	}

	c.logger.Info("Record store closed")
	return nil
}

func (c *CloverStore) FindByID(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return nil, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return nil, types.ErrRecordNotFound
	}

	docs, err := c.db.Query(collection).
		Where(clover.Field("internal_id").Eq(id)).
		Limit(1).
		FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to find document")
	}
	if len(docs) == 0 {
		return nil, types.ErrRecordNotFound
	}

	return c.toMap(docs[0])
}

func (c *CloverStore) Find(ctx context.Context, collection string, query types.RecordQuery) ([]map[string]interface{}, int64, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return nil, 0, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return []map[string]interface{}{}, 0, nil
	}

	q := c.db.Query(collection)
	if criteria := buildCriteria(query.Filter); criteria != nil {
		q = q.Where(criteria)
	}

	for field, direction := range query.Sort {
		q = q.Sort(clover.SortOption{Field: field, Direction: direction})
	}

	if query.Skip > 0 {
		q = q.Skip(query.Skip)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	docs, err := q.FindAll()
	if err != nil {
		return nil, 0, types.WrapError(err, "failed to find documents")
	}

	totalQuery := c.db.Query(collection)
	if criteria := buildCriteria(query.Filter); criteria != nil {
		totalQuery = totalQuery.Where(criteria)
	}

	total, err := totalQuery.Count()
	if err != nil {
		return nil, 0, types.WrapError(err, "failed to count documents")
	}

	results := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		docMap, err := c.toMap(doc)
		if err != nil {
			continue
		}
		results = append(results, docMap)
	}

	return results, int64(total), nil
}

func (c *CloverStore) Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return 0, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return 0, nil
	}

	q := c.db.Query(collection)
	if criteria := buildCriteria(filter); criteria != nil {
		q = q.Where(criteria)
	}

	count, err := q.Count()
	if err != nil {
		return 0, types.WrapError(err, "failed to count documents")
	}

	return int64(count), nil
}

func (c *CloverStore) Save(ctx context.Context, collection string, document map[string]interface{}) (string, error) {
	if err := c.ensureCollection(collection); err != nil {
		return "", err
	}

	id, ok := document["internal_id"].(string)
	if !ok || id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UnixNano()

	doc := clover.NewDocument()
	for key, value := range document {
		doc.Set(key, value)
	}
	doc.Set("internal_id", id)
	doc.Set("cr_time", now)
	doc.Set("ch_time", now)

	if err := c.db.Insert(collection, doc); err != nil {
		return "", types.Errorf(types.ErrStoreWriteFailed, "insert: %v", err)
	}

	return id, nil
}

func (c *CloverStore) UpdateByID(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return types.ErrRecordNotFound
	}

	q := c.db.Query(collection).Where(clover.Field("internal_id").Eq(id))

	count, err := q.Count()
	if err != nil {
		return types.WrapError(err, "failed to count matching documents")
	}
	if count == 0 {
		return types.ErrRecordNotFound
	}

	update := make(map[string]interface{}, len(patch)+1)
	for key, value := range patch {
		update[key] = value
	}
	update["ch_time"] = time.Now().UnixNano()

	if err := q.Update(update); err != nil {
		return types.Errorf(types.ErrStoreWriteFailed, "update: %v", err)
	}

	return nil
}

func (c *CloverStore) DeleteByID(ctx context.Context, collection, id string) error {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return types.ErrRecordNotFound
	}

	q := c.db.Query(collection).Where(clover.Field("internal_id").Eq(id))

	count, err := q.Count()
	if err != nil {
		return types.WrapError(err, "failed to count matching documents")
	}
	if count == 0 {
		return types.ErrRecordNotFound
	}

	if err := q.Delete(); err != nil {
		return types.Errorf(types.ErrStoreWriteFailed, "delete: %v", err)
	}

	return nil
}

func (c *CloverStore) ensureCollection(collection string) error {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}
	if exists {
		return nil
	}

	if err := c.db.CreateCollection(collection); err != nil {
		return types.WrapError(err, "failed to create collection")
	}

	return nil
}

func (c *CloverStore) toMap(doc *clover.Document) (map[string]interface{}, error) {
	docMap := make(map[string]interface{})
	if err := doc.Unmarshal(&docMap); err != nil {
		return nil, types.WrapError(err, "failed to unmarshal document")
	}

	delete(docMap, "_id")
	return docMap, nil
}

// buildCriteria translates a mongo-style filter map into clover criteria.
// Supported operators: $eq, $ne, $gt, $gte, $lt, $lte, $in, $regex, and a
// top-level $or over sub-filters; bare values compare for equality.
func buildCriteria(filter map[string]interface{}) *clover.Criteria {
	if len(filter) == 0 {
		return nil
	}

	var combined *clover.Criteria
	and := func(criteria *clover.Criteria) {
		if criteria == nil {
			return
		}
		if combined == nil {
			combined = criteria
		} else {
			combined = combined.And(criteria)
		}
	}

	for key, value := range filter {
		if key == "$or" {
			and(orCriteria(value))
			continue
		}
		and(fieldCriteria(key, value))
	}

	return combined
}

func orCriteria(value interface{}) *clover.Criteria {
	branches, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var combined *clover.Criteria
	for _, branch := range branches {
		sub, ok := branch.(map[string]interface{})
		if !ok {
			continue
		}

		criteria := buildCriteria(sub)
		if criteria == nil {
			continue
		}

		if combined == nil {
			combined = criteria
		} else {
			combined = combined.Or(criteria)
		}
	}

	return combined
}

func fieldCriteria(key string, value interface{}) *clover.Criteria {
	operators, ok := value.(map[string]interface{})
	if !ok {
		return clover.Field(key).Eq(value)
	}

	var combined *clover.Criteria
	and := func(criteria *clover.Criteria) {
		if combined == nil {
			combined = criteria
		} else {
			combined = combined.And(criteria)
		}
	}

	for op, operand := range operators {
		switch op {
		case "$eq":
			and(clover.Field(key).Eq(operand))
		case "$ne":
			and(clover.Field(key).Neq(operand))
		case "$gt":
			and(clover.Field(key).Gt(operand))
		case "$gte":
			and(clover.Field(key).GtEq(operand))
		case "$lt":
			and(clover.Field(key).Lt(operand))
		case "$lte":
			and(clover.Field(key).LtEq(operand))
		case "$in":
			if arr, ok := operand.([]interface{}); ok {
				and(clover.Field(key).In(arr...))
			}
		case "$regex":
			if pattern, ok := operand.(string); ok {
				and(clover.Field(key).Like(pattern))
			}
		}
	}

	return combined
}
