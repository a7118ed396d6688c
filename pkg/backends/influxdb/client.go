package influxdb

import (
	"context"
	"fmt"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	apierrors "github.com/irvinlim/apple-health-dashboard/pkg/errors"
)

// Bucket is a logical destination for points. Each maps to a configured
// InfluxDB bucket.
type Bucket string

const (
	BucketSummaries Bucket = "summaries"
	BucketWorkouts  Bucket = "workouts"
)

const (
	defaultBatchSize = 5000
)

// Client knows how to write points into the summary and workout buckets.
type Client interface {
	// WritePoints writes points into bucket, in batches. Failed batches are
	// returned as retryable write errors, and batches before it are not rolled back.
	WritePoints(ctx context.Context, bucket Bucket, points []*write.Point) error
}

// clientImpl is the real implementation of Client.
type clientImpl struct {
	client    influxdb2.Client
	orgName   string
	buckets   map[Bucket]string
	batchSize int
}

var _ Client = (*clientImpl)(nil)

// NewClient returns a real influxdb Client initialized from flags.
func NewClient() (Client, error) {
	client, err := NewInfluxDBClient()
	if err != nil {
		return nil, err
	}
	impl := &clientImpl{
		client:  client,
		orgName: orgName,
		buckets: map[Bucket]string{
			BucketSummaries: summariesBucketName,
			BucketWorkouts:  workoutsBucketName,
		},
		batchSize: batchSize,
	}
	return impl, nil
}

func (c *clientImpl) WritePoints(ctx context.Context, bucket Bucket, points []*write.Point) error {
	bucketName, ok := c.buckets[bucket]
	if !ok {
		return fmt.Errorf("unknown bucket %v", bucket)
	}
	writeAPI := c.client.WriteAPIBlocking(c.orgName, bucketName)
	batches := splitBatches(points, c.batchSize)
	for i, batch := range batches {
		if err := writeAPI.WritePoint(ctx, batch...); err != nil {
			return apierrors.WrapfRetryableWrite(err, fmt.Sprintf("batch %v/%v to %v", i+1, len(batches), bucketName))
		}
	}
	return nil
}

// splitBatches splits points into consecutive batches of at most size points.
// A non-positive size uses defaultBatchSize.
func splitBatches(points []*write.Point, size int) [][]*write.Point {
	if size <= 0 {
		size = defaultBatchSize
	}
	batches := make([][]*write.Point, 0, (len(points)+size-1)/size)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		batches = append(batches, points[start:end])
	}
	return batches
}

// MockClient is an in-memory Client for tests. It batches like the real
// client and can be told to fail every write.
type MockClient struct {
	BatchSize  int
	FailWrites bool

	points  map[Bucket][]*write.Point
	batches map[Bucket]int
	mu      sync.RWMutex
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	m := &MockClient{}
	m.Reset()
	return m
}

func (m *MockClient) WritePoints(_ context.Context, bucket Bucket, points []*write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return apierrors.WrapfRetryableWrite(fmt.Errorf("mock write failure"), string(bucket))
	}
	for _, batch := range splitBatches(points, m.BatchSize) {
		m.points[bucket] = append(m.points[bucket], batch...)
		m.batches[bucket]++
	}
	return nil
}

// Points returns every point written into bucket, in write order.
func (m *MockClient) Points(bucket Bucket) []*write.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.points[bucket]
}

// Batches returns the number of batches written into bucket.
func (m *MockClient) Batches(bucket Bucket) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batches[bucket]
}

func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[Bucket][]*write.Point)
	m.batches = make(map[Bucket]int)
}
