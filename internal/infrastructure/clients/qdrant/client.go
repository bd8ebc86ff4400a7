package qdrant

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/carequery/decision-support/pkg/config"
)

// Client wraps the Qdrant gRPC connection and exposes the raw service
// clients the adapters need.
type Client struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
}

// NewClient creates a new Qdrant client and verifies the connection
func NewClient(cfg *config.QdrantConfig) (*Client, error) {
	conn, err := grpc.NewClient(
		cfg.QdrantAddr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	c := &Client{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
	}

	log.Info().Str("addr", cfg.QdrantAddr()).Msg("connected to Qdrant")
	return c, nil
}

// Collections returns the collections service client
func (c *Client) Collections() qdrantclient.CollectionsClient {
	return c.collections
}

// Points returns the points service client
func (c *Client) Points() qdrantclient.PointsClient {
	return c.points
}

// EnsureCollection creates a cosine-distance collection if it does not exist
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	list, err := c.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == name {
			return nil
		}
	}

	_, err = c.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	log.Info().Str("collection", name).Int("dimension", dimension).Msg("created Qdrant collection")
	return nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}
