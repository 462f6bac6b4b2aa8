package vector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantRepository implements Repository using Qdrant.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrant creates a Qdrant-backed repository.
func NewQdrant(ctx context.Context, host string, port int, collection string) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantRepository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// QdrantFactory returns a Factory creating one collection per index
// build, named after the configured base. A fresh collection per build
// keeps the previous index intact while the new one is written, so a
// query racing a rebuild never observes a partial collection; the old
// build's collection is dropped when its Repository is closed.
func QdrantFactory(host string, port int, collection string) Factory {
	return func(ctx context.Context, dimension int) (Repository, error) {
		repo, err := NewQdrant(ctx, host, port, buildCollectionName(collection))
		if err != nil {
			return nil, err
		}
		if err := repo.create(ctx, dimension); err != nil {
			repo.conn.Close()
			return nil, err
		}
		return repo, nil
	}
}

var buildSeq atomic.Uint64

// buildCollectionName derives a collection name unique to one build.
func buildCollectionName(base string) string {
	return fmt.Sprintf("%s_%d_%d", base, time.Now().Unix(), buildSeq.Add(1))
}

// create makes the build's collection with the given dimension.
func (r *QdrantRepository) create(ctx context.Context, dimension int) error {
	_, err := r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

func (r *QdrantRepository) Upsert(ctx context.Context, chunks []Chunk) error {
	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Vector}}},
			Payload: map[string]*pb.Value{
				"text":   {Kind: &pb.Value_StringValue{StringValue: c.Text}},
				"source": {Kind: &pb.Value_StringValue{StringValue: c.Source}},
			},
		}
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	return err
}

func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = SearchResult{
			ID:     pt.Id.GetUuid(),
			Score:  pt.Score,
			Source: pt.Payload["source"].GetStringValue(),
			Text:   pt.Payload["text"].GetStringValue(),
		}
	}
	return results, nil
}

func (r *QdrantRepository) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}

// Close drops the build's collection and releases the connection.
// Rebuilds are full, never incremental, so a closed build's vectors
// are never needed again.
func (r *QdrantRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: r.collection}); err != nil {
		r.conn.Close()
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return r.conn.Close()
}
