package vectorindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig addresses a Qdrant deployment and names the collection this
// index operates on.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

const (
	defaultQdrantHost = "localhost"
	defaultQdrantPort = 6334
)

// QdrantIndex implements Index against a real Qdrant deployment. Grounded
// on the QdrantProvider pattern: thin method-per-operation wrapping of the
// generated gRPC client, with filter/result conversion kept as free
// functions rather than methods.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	*latencyTracker
	dimension int // 0 until EnsureCollection has run
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex dials a Qdrant deployment. It does not create the
// collection; call EnsureCollection before the first upsert.
func NewQdrantIndex(cfg QdrantConfig, logger *slog.Logger) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = defaultQdrantHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultQdrantPort
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("vectorindex: collection name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: dial qdrant: %w", err)
	}

	return &QdrantIndex{
		client:         client,
		collection:     cfg.Collection,
		logger:         logger,
		latencyTracker: newLatencyTracker(),
	}, nil
}

// EnsureCollection creates the collection if it is absent. If it exists
// with a different vector dimension, it is deleted and recreated — all
// existing points are lost (spec §4.3).
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	defer q.track("ensure_collection")()

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection: %w", err)
	}

	if exists {
		info, err := q.client.GetCollectionInfo(ctx, q.collection)
		if err != nil {
			return fmt.Errorf("vectorindex: get collection info: %w", err)
		}
		existingDim := collectionDimension(info)
		if existingDim == dimension {
			q.dimension = dimension
			return nil
		}

		q.logger.Warn("vector dimension changed, recreating collection",
			"collection", q.collection, "old_dimension", existingDim, "new_dimension", dimension)
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("vectorindex: delete collection for recreate: %w", err)
		}
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("vectorindex: create collection: %w", err)
	}

	q.dimension = dimension
	return nil
}

func collectionDimension(info *qdrant.CollectionInfo) int {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	vectors := info.Config.Params.VectorsConfig
	if vectors == nil {
		return 0
	}
	if params := vectors.GetParams(); params != nil {
		return int(params.Size)
	}
	return 0
}

// EnsurePayloadIndexes creates keyword indexes on the fixed filterable
// fields. Idempotent: Qdrant tolerates re-creating an existing index.
func (q *QdrantIndex) EnsurePayloadIndexes(ctx context.Context) error {
	defer q.track("ensure_payload_indexes")()

	fields := []string{PayloadChunkType, PayloadLanguage, PayloadFilePath, PayloadFileKind}
	for _, field := range fields {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("vectorindex: create payload index %q: %w", field, err)
		}
	}
	return nil
}

// Upsert writes points in batches of at most MaxUpsertBatch, rejecting the
// whole call if any point's vector length doesn't match the collection's
// dimension (caught before any network call, per-batch atomicity is moot).
func (q *QdrantIndex) Upsert(ctx context.Context, points []Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if q.dimension != 0 && len(p.Vector) != q.dimension {
			return fmt.Errorf("vectorindex: point %s: dimension_mismatch: expected %d, got %d", p.ID, q.dimension, len(p.Vector))
		}
	}

	for start := 0; start < len(points); start += MaxUpsertBatch {
		end := start + MaxUpsertBatch
		if end > len(points) {
			end = len(points)
		}
		if err := q.upsertBatch(ctx, points[start:end], wait); err != nil {
			return fmt.Errorf("vectorindex: upsert batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (q *QdrantIndex) upsertBatch(ctx context.Context, points []Point, wait bool) error {
	defer q.track("upsert")()

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := payloadToQdrant(p.Payload)
		if err != nil {
			return err
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         structs,
		Wait:           &wait,
	})
	return err
}

// DeleteByFilter removes every point matching filter.
func (q *QdrantIndex) DeleteByFilter(ctx context.Context, filter Filter) error {
	defer q.track("delete_by_filter")()

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildFilter(filter),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete by filter: %w", err)
	}
	return nil
}

// DeleteByIDs removes points by id.
func (q *QdrantIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	defer q.track("delete_by_ids")()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete by ids: %w", err)
	}
	return nil
}

// Search returns hits sorted by cosine similarity desc.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]Hit, error) {
	defer q.track("search")()

	limit := uint64(opts.Limit)
	if limit == 0 {
		limit = 10
	}

	req := &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          limit,
		WithPayload:    qdrant.NewWithPayload(opts.WithPayload),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if opts.ScoreThreshold > 0 {
		req.ScoreThreshold = &opts.ScoreThreshold
	}
	if len(opts.Filter) > 0 {
		req.Filter = buildFilter(opts.Filter)
	}

	result, err := q.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}

	return convertScored(result.Result), nil
}

// Scroll pages through points matching filter.
func (q *QdrantIndex) Scroll(ctx context.Context, filter Filter, pageSize int, offset string) (ScrollPage, error) {
	defer q.track("scroll")()

	if pageSize <= 0 {
		pageSize = 1000
	}
	limit := uint32(pageSize)

	req := &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if len(filter) > 0 {
		req.Filter = buildFilter(filter)
	}
	if offset != "" {
		req.Offset = qdrant.NewID(offset)
	}

	result, err := q.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return ScrollPage{}, fmt.Errorf("vectorindex: scroll: %w", err)
	}

	hits := make([]Hit, len(result.Result))
	for i, p := range result.Result {
		hits[i] = Hit{
			ID:      pointIDString(p.Id),
			Payload: payloadFromQdrant(p.Payload),
		}
	}

	next := ""
	if result.NextPageOffset != nil {
		next = pointIDString(result.NextPageOffset)
	}
	return ScrollPage{Hits: hits, NextOffset: next}, nil
}

// Stats reports recent per-call latency, grouped by operation name.
func (q *QdrantIndex) Stats() LatencyStats { return q.latencyTracker.stats() }

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func isAlreadyExists(err error) bool {
	// Qdrant returns a generic RPC error for "index already exists"; string
	// matching keeps EnsurePayloadIndexes idempotent without depending on
	// gRPC status code plumbing the client doesn't expose cleanly.
	return err != nil && (contains(err.Error(), "already exists") || contains(err.Error(), "Index already exists"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// buildFilter converts a flat equality-filter map into a Qdrant Must
// conjunction, grounded on the QdrantProvider's buildQdrantFilter.
func buildFilter(filter Filter) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		val, err := qdrant.NewValue(value)
		if err != nil {
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: val.GetStringValue()},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func payloadToQdrant(payload map[string]any) (map[string]*qdrant.Value, error) {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func payloadFromQdrant(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = qdrantValueToAny(value)
	}
	return out
}

func qdrantValueToAny(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = qdrantValueToAny(item)
		}
		return list
	default:
		return nil
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func convertScored(points []*qdrant.ScoredPoint) []Hit {
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			ID:      pointIDString(p.Id),
			Score:   p.Score,
			Payload: payloadFromQdrant(p.Payload),
		})
	}
	return hits
}
