package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"mdrag/internal/chunker"
	"mdrag/internal/logger"
)

const scrollPageSize = 256

// Qdrant принимает только UUID или числа: ID точки выводим из fingerprint
var pointNamespace = uuid.MustParse("8c5b0f3e-2d4a-4e7b-9a61-3f0d2c9e7b15")

// EmbeddingFunc превращает текст в вектор
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

type QdrantOptions struct {
	Addr       string
	APIKey     string
	Collection string
	Embed      EmbeddingFunc
}

// Qdrant - хранилище поверх gRPC API qdrant
type Qdrant struct {
	opts        QdrantOptions
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	exists      bool
	log         logger.Logger
}

var _ Store = (*Qdrant)(nil)

func NewQdrant(ctx context.Context, opts QdrantOptions) (*Qdrant, error) {
	conn, err := grpc.NewClient(opts.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	q, err := newQdrant(ctx, qdrantclient.NewCollectionsClient(conn), qdrantclient.NewPointsClient(conn), opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	q.conn = conn
	return q, nil
}

func newQdrant(
	ctx context.Context,
	collections qdrantclient.CollectionsClient,
	points qdrantclient.PointsClient,
	opts QdrantOptions,
) (*Qdrant, error) {
	q := &Qdrant{
		opts:        opts,
		collections: collections,
		points:      points,
		log:         logger.FromContext(ctx).With("store", "qdrant", "collection", opts.Collection),
	}
	resp, err := collections.List(q.rpcCtx(ctx), &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == opts.Collection {
			q.exists = true
			break
		}
	}
	return q, nil
}

// PointID - детерминированный UUID точки для fingerprint
func PointID(fingerprint string) string {
	return uuid.NewSHA1(pointNamespace, []byte(fingerprint)).String()
}

func (q *Qdrant) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	if !q.exists {
		return ids, nil
	}
	limit := uint32(scrollPageSize)
	var offset *qdrantclient.PointId
	for {
		resp, err := q.points.Scroll(q.rpcCtx(ctx), &qdrantclient.ScrollPoints{
			CollectionName: q.opts.Collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload: &qdrantclient.WithPayloadSelector{
				SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
					Include: &qdrantclient.PayloadIncludeSelector{Fields: []string{"fingerprint"}},
				},
			},
			WithVectors: &qdrantclient.WithVectorsSelector{
				SelectorOptions: &qdrantclient.WithVectorsSelector_Enable{Enable: false},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		for _, p := range resp.GetResult() {
			if fp := p.GetPayload()["fingerprint"].GetStringValue(); fp != "" {
				ids[fp] = struct{}{}
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

func (q *Qdrant) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrantclient.PointStruct, 0, len(records))
	for _, r := range records {
		vector, err := q.opts.Embed(ctx, r.Text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %s: %w", r.ID, err)
		}
		if err := q.ensureCollection(ctx, len(vector)); err != nil {
			return err
		}
		points = append(points, &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: PointID(r.ID)},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: vector},
				},
			},
			Payload: payloadFromRecord(r),
		})
	}

	wait := true
	_, err := q.points.Upsert(q.rpcCtx(ctx), &qdrantclient.UpsertPoints{
		CollectionName: q.opts.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	if !q.exists {
		return 0, nil
	}
	exact := true
	resp, err := q.points.Count(q.rpcCtx(ctx), &qdrantclient.CountPoints{
		CollectionName: q.opts.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (q *Qdrant) Query(ctx context.Context, text string, n int) ([]Match, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}
	if n > count {
		n = count
	}
	vector, err := q.opts.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	resp, err := q.points.Search(q.rpcCtx(ctx), &qdrantclient.SearchPoints{
		CollectionName: q.opts.Collection,
		Vector:         vector,
		Limit:          uint64(n),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	matches := make([]Match, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		matches = append(matches, Match{
			ID:         payload["fingerprint"].GetStringValue(),
			Text:       payload["text"].GetStringValue(),
			Metadata:   metadataFromPayload(payload),
			Similarity: p.GetScore(),
		})
	}
	return matches, nil
}

func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// ensureCollection создаёт коллекцию при первой записи: размерность известна только после эмбеддинга
func (q *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	if q.exists {
		return nil
	}
	q.log.Info("Creating collection", "dimension", dim)
	_, err := q.collections.Create(q.rpcCtx(ctx), &qdrantclient.CreateCollection{
		CollectionName: q.opts.Collection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dim),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	q.exists = true
	return nil
}

func (q *Qdrant) rpcCtx(ctx context.Context) context.Context {
	if q.opts.APIKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", q.opts.APIKey)
}

func payloadFromRecord(r Record) map[string]*qdrantclient.Value {
	str := func(s string) *qdrantclient.Value {
		return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
	}
	num := func(n int) *qdrantclient.Value {
		return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(n)}}
	}
	m := r.Metadata
	return map[string]*qdrantclient.Value{
		"fingerprint": str(r.ID),
		"text":        str(r.Text),
		"source":      str(m.Source),
		"chunk_index": num(m.ChunkIndex),
		"chunk_type":  str(string(m.ChunkType)),
		"chunk_size":  num(m.ChunkSize),
		"filename":    str(m.Filename),
		"headers":     str(m.Headers),
		"title":       str(m.Title),
	}
}

func metadataFromPayload(p map[string]*qdrantclient.Value) Metadata {
	return Metadata{
		Source:     p["source"].GetStringValue(),
		ChunkIndex: int(p["chunk_index"].GetIntegerValue()),
		ChunkType:  chunker.Kind(p["chunk_type"].GetStringValue()),
		ChunkSize:  int(p["chunk_size"].GetIntegerValue()),
		Filename:   p["filename"].GetStringValue(),
		Headers:    p["headers"].GetStringValue(),
		Title:      p["title"].GetStringValue(),
	}
}
