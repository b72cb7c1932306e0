// Package zookeeper implements domain.Coordinator on top of go-zookeeper/zk.
package zookeeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OliveiraNt/kviz/internal/config"
	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// conn is the subset of *zk.Conn the client relies on.
type conn interface {
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Close()
}

// Client wraps a ZooKeeper session.
type Client struct {
	conn conn
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...any) {
	utils.Logger.Debug(fmt.Sprintf(strings.TrimSpace(format), args...), "component", "zookeeper")
}

// Connect opens a session against the configured ensemble and blocks until
// the session is established or ConnectTimeout elapses.
func Connect(cfg config.ZookeeperConfig) (*Client, error) {
	c, events, err := zk.Connect(cfg.Servers, cfg.SessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper connect")
	}

	timer := time.NewTimer(cfg.ConnectTimeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.Close()
				return nil, errors.New("zookeeper event channel closed before session was established")
			}
			if ev.State == zk.StateHasSession {
				utils.Logger.Info("zookeeper session established", "servers", cfg.Servers, "server", ev.Server)
				go drainEvents(events)
				return newClient(c), nil
			}
			if ev.State == zk.StateAuthFailed {
				c.Close()
				return nil, errors.New("zookeeper authentication failed")
			}
		case <-timer.C:
			c.Close()
			return nil, errors.Wrapf(domain.ErrTimeout, "zookeeper session to %v", cfg.Servers)
		}
	}
}

// drainEvents logs session state transitions for the lifetime of the connection.
func drainEvents(events <-chan zk.Event) {
	for ev := range events {
		if ev.Type != zk.EventSession {
			continue
		}
		switch ev.State {
		case zk.StateExpired, zk.StateDisconnected:
			utils.Logger.Warn("zookeeper session state changed", "state", ev.State.String())
		default:
			utils.Logger.Debug("zookeeper session state changed", "state", ev.State.String())
		}
	}
}

func newClient(c conn) *Client {
	return &Client{conn: c}
}

func (c *Client) Close() {
	c.conn.Close()
}

func translate(err error, path string) error {
	if errors.Is(err, zk.ErrNoNode) {
		return errors.Wrapf(domain.ErrNoNode, "path %s", path)
	}
	return errors.Wrapf(err, "path %s", path)
}

// WaitUntilExists blocks until path exists, timeout elapses or ctx is done.
func (c *Client) WaitUntilExists(ctx context.Context, path string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		ok, _, ch, err := c.conn.ExistsW(path)
		if err != nil {
			return translate(err, path)
		}
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-timer.C:
			return errors.Wrapf(domain.ErrTimeout, "waiting %s for %s", timeout, path)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) Children(path string) ([]string, error) {
	children, _, err := c.conn.Children(path)
	if err != nil {
		return nil, translate(err, path)
	}
	return children, nil
}

func (c *Client) Data(path string) ([]byte, error) {
	data, _, err := c.conn.Get(path)
	if err != nil {
		return nil, translate(err, path)
	}
	return data, nil
}

// SubscribeChildChanges arms a watch on path and keeps re-arming it until ctx
// is done. Each firing delivers the full child list; a deleted path delivers
// an empty list and the watch waits for it to be recreated.
func (c *Client) SubscribeChildChanges(ctx context.Context, path string, listener domain.ChildListener) error {
	_, ch, err := c.arm(path)
	if err != nil {
		return err
	}
	go c.watchLoop(ctx, path, ch, listener)
	return nil
}

// arm returns the current children and a one-shot watch channel. A missing
// path yields no children and an existence watch instead.
func (c *Client) arm(path string) ([]string, <-chan zk.Event, error) {
	children, _, ch, err := c.conn.ChildrenW(path)
	if err == nil {
		return children, ch, nil
	}
	if !errors.Is(err, zk.ErrNoNode) {
		return nil, nil, translate(err, path)
	}
	ok, _, ch, err := c.conn.ExistsW(path)
	if err != nil {
		return nil, nil, translate(err, path)
	}
	if ok {
		// created between the two calls
		return c.arm(path)
	}
	return []string{}, ch, nil
}

func (c *Client) watchLoop(ctx context.Context, path string, ch <-chan zk.Event, listener domain.ChildListener) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Err != nil {
				utils.Logger.Warn("zookeeper watch fired with error", "path", path, "err", ev.Err)
			}
		}

		var (
			children []string
			err      error
		)
		for {
			children, ch, err = c.arm(path)
			if err == nil {
				break
			}
			if errors.Is(err, zk.ErrClosing) || errors.Is(err, zk.ErrConnectionClosed) {
				utils.Logger.Debug("zookeeper watch stopped", "path", path, "err", err)
				return
			}
			utils.Logger.Warn("re-arming zookeeper watch failed", "path", path, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
		listener(path, children)
	}
}
