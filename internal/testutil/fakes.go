package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/pkg/errors"
)

// FakeCoordinator is an in-memory node tree implementing domain.Coordinator.
// Creating or deleting a node notifies subscribers of its parent. WaitUntilExists
// never blocks: a missing path fails with domain.ErrTimeout at once.
type FakeCoordinator struct {
	mu           sync.Mutex
	nodes        map[string][]byte
	listeners    map[string][]domain.ChildListener
	dataErr      map[string]error
	dataCalls    map[string]int
	subscribeErr error
}

// NewFakeCoordinator returns an empty tree.
func NewFakeCoordinator() *FakeCoordinator {
	return &FakeCoordinator{
		nodes:     map[string][]byte{},
		listeners: map[string][]domain.ChildListener{},
		dataErr:   map[string]error{},
		dataCalls: map[string]int{},
	}
}

// Create adds path (and any missing ancestors) holding data.
func (f *FakeCoordinator) Create(path string, data []byte) {
	f.mu.Lock()
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		p := "/" + strings.Join(parts[:i], "/")
		if _, ok := f.nodes[p]; !ok {
			f.nodes[p] = nil
		}
	}
	f.nodes[path] = data
	f.mu.Unlock()
	f.Notify(parentOf(path))
}

// Delete removes path and its descendants.
func (f *FakeCoordinator) Delete(path string) {
	f.mu.Lock()
	for p := range f.nodes {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(f.nodes, p)
		}
	}
	f.mu.Unlock()
	f.Notify(parentOf(path))
}

// FailData makes Data on path return err.
func (f *FakeCoordinator) FailData(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataErr[path] = err
}

// SetSubscribeErr makes SubscribeChildChanges fail with err until cleared.
func (f *FakeCoordinator) SetSubscribeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

// DataCalls reports how many times Data was called on path.
func (f *FakeCoordinator) DataCalls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dataCalls[path]
}

// Subscribed reports whether anyone listens on path.
func (f *FakeCoordinator) Subscribed(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[path]) > 0
}

// Notify delivers the current children of path to its subscribers.
func (f *FakeCoordinator) Notify(path string) {
	children, _ := f.Children(path)
	f.Emit(path, children)
}

// Emit delivers an arbitrary child list to the subscribers of path.
func (f *FakeCoordinator) Emit(path string, children []string) {
	f.mu.Lock()
	ls := append([]domain.ChildListener(nil), f.listeners[path]...)
	f.mu.Unlock()
	for _, l := range ls {
		l(path, append([]string(nil), children...))
	}
}

func (f *FakeCoordinator) WaitUntilExists(ctx context.Context, path string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return errors.Wrapf(domain.ErrTimeout, "path %s", path)
	}
	return nil
}

func (f *FakeCoordinator) Children(path string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return nil, errors.Wrapf(domain.ErrNoNode, "path %s", path)
	}
	prefix := path + "/"
	if path == "/" {
		prefix = "/"
	}
	var out []string
	for p := range f.nodes {
		if p != path && parentOf(p) == path {
			out = append(out, strings.TrimPrefix(p, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *FakeCoordinator) Data(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataCalls[path]++
	if err := f.dataErr[path]; err != nil {
		return nil, err
	}
	data, ok := f.nodes[path]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNoNode, "path %s", path)
	}
	return data, nil
}

func (f *FakeCoordinator) SubscribeChildChanges(ctx context.Context, path string, listener domain.ChildListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.listeners[path] = append(f.listeners[path], listener)
	idx := len(f.listeners[path]) - 1
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		ls := f.listeners[path]
		if idx < len(ls) {
			ls[idx] = func(string, []string) {}
		}
	}()
	return nil
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

// FakeKafkaClient is a test double implementing domain.KafkaClient with configurable responses.
type FakeKafkaClient struct {
	mu             sync.Mutex
	Healthy        bool
	ConsumerGroups []domain.ConsumerGroupSummary
	Sampled        []domain.TopicMessage
	Written        []domain.TopicMessage
	Err            error
	Closed         bool
}

func NewFakeKafkaClient() *FakeKafkaClient {
	return &FakeKafkaClient{Healthy: true}
}

func (f *FakeKafkaClient) IsHealthy() bool { return f.Healthy }
func (f *FakeKafkaClient) ListConsumerGroups(_ context.Context) ([]domain.ConsumerGroupSummary, error) {
	return f.ConsumerGroups, f.Err
}

// StreamMessages replays Sampled and then blocks until ctx is done.
func (f *FakeKafkaClient) StreamMessages(ctx context.Context, out chan<- domain.TopicMessage) {
	for _, m := range f.Sampled {
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
	<-ctx.Done()
}

func (f *FakeKafkaClient) WriteMessage(_ context.Context, topic string, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Written = append(f.Written, domain.TopicMessage{Topic: topic, Message: msg})
	return nil
}

func (f *FakeKafkaClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
}
