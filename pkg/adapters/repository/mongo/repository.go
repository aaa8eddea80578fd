package mongo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/metrics"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

// windowCollection holds one claim document per (ip, page) pair.
const windowCollection = "visit_windows"

// claimRetention lets MongoDB drop claims long after any cooldown has passed.
const claimRetention = 24 * time.Hour

type MongoRepository struct {
	client  *mongo.Client
	db      *mongo.Database
	visits  *mongo.Collection
	windows *mongo.Collection
}

// IsMongoURL reports whether dbURL selects the MongoDB backend.
func IsMongoURL(dbURL string) bool {
	return strings.HasPrefix(dbURL, "mongodb://") || strings.HasPrefix(dbURL, "mongodb+srv://")
}

func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	repo := &MongoRepository{
		client:  client,
		db:      db,
		visits:  db.Collection(string(domain.CollectionVisits)),
		windows: db.Collection(windowCollection),
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	visitIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ip", Value: 1}, {Key: "page", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "country", Value: 1}}},
	}
	if _, err := r.visits.Indexes().CreateMany(ctx, visitIndexes); err != nil {
		return fmt.Errorf("create visit indexes: %w", err)
	}

	ttl := mongo.IndexModel{
		Keys:    bson.D{{Key: "lastSeen", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(claimRetention.Seconds())),
	}
	if _, err := r.windows.Indexes().CreateOne(ctx, ttl); err != nil {
		return fmt.Errorf("create window index: %w", err)
	}
	return nil
}

func windowKey(ip, page string) string {
	sum := sha256.Sum256([]byte(ip + "\x00" + page))
	return hex.EncodeToString(sum[:])
}

// RecordVisitOnce claims the (ip, page) slot with a conditional upsert. The
// upsert only matches a claim older than the cutoff; a fresh claim makes the
// implied insert collide on _id, which marks the visit as a duplicate.
func (r *MongoRepository) RecordVisitOnce(ctx context.Context, visit *domain.Visit, window time.Duration) (bool, error) {
	defer metrics.ObserveQuery("record_visit", time.Now())

	createdAt := visit.CreatedAt.UTC()
	key := windowKey(visit.IP, visit.Page)

	filter := bson.M{"_id": key, "lastSeen": bson.M{"$lt": createdAt.Add(-window)}}
	update := bson.M{"$set": bson.M{"lastSeen": createdAt, "ip": visit.IP, "page": visit.Page}}
	_, err := r.windows.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim visit window: %w", err)
	}

	visit.ID = uuid.NewString()
	visit.CreatedAt = createdAt
	if _, err := r.visits.InsertOne(ctx, visit); err != nil {
		r.releaseClaim(ctx, key, createdAt)
		return false, fmt.Errorf("insert visit: %w", err)
	}
	return true, nil
}

// releaseClaim rewinds a claim whose visit could not be stored so the next
// view is not suppressed.
func (r *MongoRepository) releaseClaim(ctx context.Context, key string, claimedAt time.Time) {
	filter := bson.M{"_id": key, "lastSeen": claimedAt}
	update := bson.M{"$set": bson.M{"lastSeen": time.Time{}}}
	if _, err := r.windows.UpdateOne(ctx, filter, update); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to release visit window claim")
	}
}

func (r *MongoRepository) CountVisits(ctx context.Context) (int64, error) {
	defer metrics.ObserveQuery("count_visits", time.Now())

	n, err := r.visits.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

func (r *MongoRepository) CountDistinctVisitors(ctx context.Context) (int64, error) {
	defer metrics.ObserveQuery("count_distinct_visitors", time.Now())

	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$ip"}},
		{"$count": "unique_visitors"},
	}

	cursor, err := r.visits.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate distinct visitors: %w", err)
	}
	defer cursor.Close(ctx)

	var result struct {
		UniqueVisitors int64 `bson:"unique_visitors"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return 0, fmt.Errorf("decode distinct visitors: %w", err)
		}
		return result.UniqueVisitors, nil
	}
	return 0, cursor.Err()
}

func (r *MongoRepository) CountVisitsByCountry(ctx context.Context) ([]domain.CountryCount, error) {
	defer metrics.ObserveQuery("count_visits_by_country", time.Now())

	return r.countByCountry(ctx, r.visits, "$country")
}

func (r *MongoRepository) CountUsersByCountry(ctx context.Context) ([]domain.CountryCount, error) {
	defer metrics.ObserveQuery("count_users_by_country", time.Now())

	// Missing, null and empty countries all group under the fallback label.
	groupKey := bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$country", ""}}, ""}},
		domain.UnknownCountry,
		"$country",
	}}
	return r.countByCountry(ctx, r.db.Collection(string(domain.CollectionUsers)), groupKey)
}

func (r *MongoRepository) countByCountry(ctx context.Context, coll *mongo.Collection, groupKey interface{}) ([]domain.CountryCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: groupKey},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s by country: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	counts := []domain.CountryCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("decode %s by country: %w", coll.Name(), err)
	}
	return counts, nil
}

func (r *MongoRepository) DumpVisits(ctx context.Context) ([]domain.Visit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.visits.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find visits: %w", err)
	}
	defer cursor.Close(ctx)

	var visits []domain.Visit
	if err := cursor.All(ctx, &visits); err != nil {
		return nil, fmt.Errorf("decode visits: %w", err)
	}
	return visits, nil
}

func (r *MongoRepository) Count(ctx context.Context, collection domain.Collection, filters map[string]interface{}) (int64, error) {
	if !collection.IsContent() {
		return 0, fmt.Errorf("%w: %s", ports.ErrUnknownCollection, collection)
	}
	defer metrics.ObserveQuery("count_"+string(collection), time.Now())

	filter := bson.M{}
	for key, value := range filters {
		filter[key] = value
	}

	n, err := r.db.Collection(string(collection)).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (r *MongoRepository) InsertDocuments(ctx context.Context, collection domain.Collection, docs []domain.Document) (int, error) {
	if !collection.IsContent() {
		return 0, fmt.Errorf("%w: %s", ports.ErrUnknownCollection, collection)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		batch = append(batch, bson.M(doc))
	}

	res, err := r.db.Collection(string(collection)).InsertMany(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", collection, err)
	}
	return len(res.InsertedIDs), nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

var _ ports.Repository = (*MongoRepository)(nil)
