package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebook/internal/model"
)

type fakeBook struct {
	mu   sync.Mutex
	reqs []model.TradeRequest
	err  error
}

func (f *fakeBook) Submit(_ context.Context, req model.TradeRequest) (model.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return model.Trade{}, f.err
	}
	return model.Trade{ID: "t-1", Symbol: req.Symbol}, nil
}

type fakeReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_test_total"}, []string{"result"})
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		bookErr error
		want    string
	}{
		{"accepted", `{"symbol":"btc","side":"buy","price":"50000","quantity":"1"}`, nil, ResultAccepted},
		{"numeric fields", `{"symbol":"eth","side":"buy","price":3000,"quantity":2}`, nil, ResultAccepted},
		{"malformed", `{"symbol":`, nil, ResultInvalid},
		{"not an object", `[1,2]`, nil, ResultInvalid},
		{"rejected", `{"symbol":"btc","side":"sell","price":"1","quantity":"1"}`, model.ErrNoPosition, ResultRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := newCounter()
			c := NewConsumer(&fakeReader{}, &fakeBook{err: tt.bookErr}, nil, results)
			got := c.handle(context.Background(), kafka.Message{Value: []byte(tt.value)})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1.0, testutil.ToFloat64(results.WithLabelValues(tt.want)))
		})
	}
}

func TestRunSubmitsUntilCancelled(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Value: []byte(`{"symbol":"BTC","side":"buy","price":"100","quantity":"1"}`), Time: time.Now()},
		{Value: []byte(`garbage`)},
		{Value: []byte(`{"symbol":"ETH","side":"buy","price":"10","quantity":"2"}`)},
	}}
	book := &fakeBook{}
	results := newCounter()
	c := NewConsumer(r, book, nil, results)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		book.mu.Lock()
		defer book.mu.Unlock()
		return len(book.reqs) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.True(t, r.closed)
	assert.Equal(t, "BTC", book.reqs[0].Symbol)
	assert.Equal(t, "ETH", book.reqs[1].Symbol)
	assert.Equal(t, 1.0, testutil.ToFloat64(results.WithLabelValues(ResultInvalid)))
}

type failingReader struct{ fakeReader }

func (r *failingReader) ReadMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("broker gone")
}

func TestRunReturnsReaderError(t *testing.T) {
	c := NewConsumer(&failingReader{}, &fakeBook{}, nil, nil)
	err := c.Run(context.Background())
	assert.EqualError(t, err, "broker gone")
}
